package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"twitchtts/internal/app/adapters/feed"
	router "twitchtts/internal/app/adapters/http"
	"twitchtts/internal/app/adapters/http/handlers"
	"twitchtts/internal/app/adapters/platform/twitch/irc"
	"twitchtts/internal/app/adapters/session"
	"twitchtts/internal/app/adapters/stats"
	"twitchtts/internal/app/adapters/transcript"
	"twitchtts/internal/app/domain/announcer"
	"twitchtts/internal/app/domain/reader"
	"twitchtts/internal/app/infrastructure/config"
	"twitchtts/internal/app/infrastructure/retry"
	"twitchtts/internal/app/infrastructure/storage"
	"twitchtts/internal/app/infrastructure/timers"
	"twitchtts/internal/app/ports"
	"twitchtts/pkg/logger"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	historySize     = 50
	historyTTL      = 10 * time.Minute
	maxBackoff      = time.Minute
	wheelTick       = time.Second
	wheelSlots      = 3600
	historyCleanup  = time.Minute
	defaultLogSizeM = 64
)

type Options struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string // overrides the config when set
}

// Run wires the chat session, the reader and the HTTP surface together and
// blocks until ctx is cancelled or the chat session is lost.
func Run(ctx context.Context, opts Options) error {
	manager, err := config.New(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := manager.Get()

	log := logger.New(logger.WithFile(cfg.App.LogFile, defaultLogSizeM))
	level := cfg.App.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	log.SetLogLevel(level)

	creds, err := config.LoadCredentials(opts.EnvFile)
	if err != nil {
		return err
	}
	log.Info("Credentials loaded", slog.String("account", creds.String()))

	dialer, err := irc.NewDialer(cfg.IRC, cfg.Proxy)
	if err != nil {
		return fmt.Errorf("build dialer: %w", err)
	}

	clock := clockwork.NewRealClock()
	stream := irc.New(logger.NewPrefixedLogger(log, "irc"), creds,
		irc.WithEndpoint(cfg.IRC.Address),
		irc.WithDialer(dialer),
		irc.WithClock(clock),
		irc.WithThrottle(cfg.IRC.Throttle()),
		irc.WithReadWait(cfg.IRC.ReadWait()),
		irc.WithLoginTimeout(cfg.IRC.LoginTimeout()),
		irc.WithReconnectPolicy(retry.Policy{
			MaxAttempts:    cfg.IRC.Reconnect.MaxAttempts,
			InitialBackoff: cfg.IRC.Reconnect.InitialBackoff(),
			MaxBackoff:     maxBackoff,
		}),
	)

	muted, err := storage.NewCache[bool](storage.WithPersistence(cfg.Storage.MutedFile, true))
	if err != nil {
		return fmt.Errorf("load mute list: %w", err)
	}

	tr := transcript.New(cfg.Reader.TranscriptFile, clock)
	defer func() { _ = tr.Close() }()

	hub := feed.New(logger.NewPrefixedLogger(log, "feed"), clock, storage.NewHistory[ports.ChatMessage](clock, historySize, historyTTL))
	defer hub.Close()

	st := stats.New(clock)
	rd := reader.New(logger.NewPrefixedLogger(log, "reader"), fanout{tr, hub}, muted, cfg.Reader)

	worker := session.New(logger.NewPrefixedLogger(log, "session"), stream,
		session.WithClock(clock),
		session.WithPollInterval(cfg.IRC.PollInterval()),
		session.WithChannel(cfg.App.Channel),
		session.WithHandler(func(msg ports.ChatMessage, current string) {
			st.AddMessage(msg.Username)
			if rd.Handle(msg, current) {
				st.AddSpoken()
			}
		}),
	)

	wheel := timers.NewTimingWheel(clock, wheelTick, wheelSlots)
	ann := announcer.New(logger.NewPrefixedLogger(log, "announcer"), worker, wheel, cfg.Announcer)
	if cfg.Announcer.Enabled {
		ann.Start()
	}

	r := router.NewRouter(log, manager, handlers.Deps{
		Session:   worker,
		Reader:    rd,
		Announcer: ann,
		Feed:      hub,
		Stats:     st,
	})

	sub, unsubscribe := worker.Subscribe()
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wheel.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Pump(gctx, sub)
		return nil
	})
	g.Go(func() error {
		hub.CleanupEvery(gctx, historyCleanup)
		return nil
	})
	g.Go(func() error {
		if err := r.Run(gctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(gctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, irc.ErrLoginRejected) {
			log.Error("Twitch rejected the login, check TWITCH_USERNAME and TWITCH_OAUTH", err)
		}
		return fmt.Errorf("chat session: %w", err)
	})

	err = g.Wait()
	if ferr := muted.FlushToDisk(); ferr != nil {
		log.Error("Failed to save mute list", ferr)
	}
	log.Info("Stopped")
	return err
}

// fanout hands a spoken line to every sink.
type fanout []ports.SpeechSink

func (f fanout) Speak(line string) error {
	var errs []error
	for _, s := range f {
		if err := s.Speak(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
