package reader

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"twitchtts/internal/app/adapters/metrics"
	"twitchtts/internal/app/infrastructure/config"
	"twitchtts/internal/app/ports"
	"twitchtts/pkg/logger"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSpoken       = "spoken"
	OutcomeDisabled     = "disabled"
	OutcomeOtherChannel = "other_channel"
	OutcomeMuted        = "muted"
	OutcomeNotAddressed = "not_addressed"
	OutcomeTooLong      = "too_long"
	OutcomeSinkError    = "sink_error"
)

var (
	ErrEmptyUser        = errors.New("empty username")
	ErrInvalidMaxLength = errors.New("max length must be at least 1")
)

// State is the reader's runtime settings.
type State struct {
	Enabled   bool `json:"enabled"`
	FilterAt  bool `json:"filter_at"`
	MaxLength int  `json:"max_length"`
}

// Reader decides which chat messages are read aloud and hands them to the
// speech sink as "<user> said: <message>".
type Reader struct {
	log   logger.Logger
	sink  ports.SpeechSink
	muted ports.CachePort[bool]

	mu    sync.RWMutex
	state State
}

// New seeds the mute list with cfg.MutedUsers on top of what the cache
// already holds.
func New(log logger.Logger, sink ports.SpeechSink, muted ports.CachePort[bool], cfg config.Reader) *Reader {
	r := &Reader{
		log:   log,
		sink:  sink,
		muted: muted,
		state: State{
			Enabled:   cfg.Enabled,
			FilterAt:  cfg.FilterAt,
			MaxLength: cfg.MaxLength,
		},
	}

	for _, user := range cfg.MutedUsers {
		if user = normalizeUser(user); user != "" {
			muted.Set(user, true)
		}
	}
	return r
}

// Handle reads msg aloud if it passes the filters and reports whether it did.
func (r *Reader) Handle(msg ports.ChatMessage, currentChannel string) bool {
	outcome := r.decide(msg, currentChannel)
	if outcome == OutcomeSpoken {
		if err := r.sink.Speak(Line(msg)); err != nil {
			r.log.Error("Speech sink failed", err, slog.String("user", msg.Username))
			outcome = OutcomeSinkError
		}
	}

	metrics.MessagesRead.With(prometheus.Labels{"outcome": outcome}).Inc()
	r.log.Trace("Message handled", slog.String("user", msg.Username), slog.String("outcome", outcome))
	return outcome == OutcomeSpoken
}

func (r *Reader) decide(msg ports.ChatMessage, currentChannel string) string {
	r.mu.RLock()
	state := r.state
	r.mu.RUnlock()

	currentChannel = strings.ToLower(currentChannel)
	switch {
	case !state.Enabled:
		return OutcomeDisabled
	case currentChannel == "" || msg.Channel != "#"+currentChannel:
		return OutcomeOtherChannel
	}

	if _, ok := r.muted.Get(normalizeUser(msg.Username)); ok {
		return OutcomeMuted
	}
	if state.FilterAt && !strings.Contains(strings.ToLower(msg.Text), "@"+currentChannel) {
		return OutcomeNotAddressed
	}
	if utf8.RuneCountInString(msg.Text) >= state.MaxLength {
		return OutcomeTooLong
	}
	return OutcomeSpoken
}

// Line is the sentence spoken for a message. '@' is dropped so mentions
// are read as plain names.
func Line(msg ports.ChatMessage) string {
	return strings.ReplaceAll(strings.ToLower(msg.Username)+" said: "+msg.Text, "@", "")
}

func (r *Reader) Mute(user string) error {
	user = normalizeUser(user)
	if user == "" {
		return ErrEmptyUser
	}
	r.muted.Set(user, true)
	r.log.Info("User muted", slog.String("user", user))
	return r.muted.FlushToDisk()
}

func (r *Reader) Unmute(user string) error {
	user = normalizeUser(user)
	if user == "" {
		return ErrEmptyUser
	}
	r.muted.ClearKey(user)
	r.log.Info("User unmuted", slog.String("user", user))
	return r.muted.FlushToDisk()
}

func (r *Reader) Muted() []string {
	return r.muted.Keys()
}

func (r *Reader) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Reader) SetEnabled(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Enabled = v
}

func (r *Reader) SetFilterAt(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.FilterAt = v
}

// SetMaxLength sets the length limit. Messages of n runes or more are skipped.
func (r *Reader) SetMaxLength(n int) error {
	if n < 1 {
		return ErrInvalidMaxLength
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.MaxLength = n
	return nil
}

func normalizeUser(user string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(user), "@"))
}
