package announcer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"twitchtts/internal/app/infrastructure/config"
	"twitchtts/internal/app/ports"
	"twitchtts/pkg/logger"
)

const (
	timerID     = "announce"
	sayTimeout  = 5 * time.Second
	MinInterval = config.MinAnnounceSeconds * time.Second
)

type scheduler interface {
	AddTimer(id string, interval time.Duration, task func())
	UpdateTimer(id string, newInterval time.Duration)
	RemoveTimer(id string)
}

// Announcer periodically posts a fixed text to the channel the session is in.
type Announcer struct {
	log     logger.Logger
	session ports.SessionPort
	wheel   scheduler

	mu       sync.Mutex
	text     string
	interval time.Duration
	running  bool
}

func New(log logger.Logger, session ports.SessionPort, wheel scheduler, cfg config.Announcer) *Announcer {
	return &Announcer{
		log:      log,
		session:  session,
		wheel:    wheel,
		text:     cfg.Text,
		interval: clamp(cfg.Interval()),
	}
}

func clamp(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	return d
}

func (a *Announcer) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return
	}
	a.running = true
	a.wheel.AddTimer(timerID, a.interval, a.Announce)
	a.log.Info("Announcer started", slog.Duration("interval", a.interval))
}

func (a *Announcer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false
	a.wheel.RemoveTimer(timerID)
	a.log.Info("Announcer stopped")
}

// SetInterval changes the period; values under a minute are raised to one.
func (a *Announcer) SetInterval(d time.Duration) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.interval = clamp(d)
	if a.running {
		a.wheel.UpdateTimer(timerID, a.interval)
	}
	return a.interval
}

func (a *Announcer) SetText(text string) error {
	if text == "" {
		return errors.New("announcement text is empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.text = text
	return nil
}

// Announce posts the text once. Outside a channel it does nothing.
func (a *Announcer) Announce() {
	if !a.session.Status().InChannel {
		a.log.Debug("Announcement skipped, not in a channel")
		return
	}

	a.mu.Lock()
	text := a.text
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sayTimeout)
	defer cancel()

	if err := a.session.Say(ctx, text); err != nil {
		a.log.Warn("Failed to queue announcement", slog.String("error", err.Error()))
	}
}
