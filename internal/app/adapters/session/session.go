package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"twitchtts/internal/app/adapters/platform/twitch/irc"
	"twitchtts/internal/app/ports"
	"twitchtts/pkg/logger"

	"github.com/jonboulle/clockwork"
)

const (
	defaultPollInterval = 200 * time.Millisecond
	subscriberBuffer    = 64
)

var (
	ErrStopped      = errors.New("session worker is not running")
	ErrNotInChannel = errors.New("not in a channel")
)

// Handler is called on the worker goroutine for every chat message, together
// with the channel the session is in at that moment.
type Handler func(msg ports.ChatMessage, currentChannel string)

type commandKind int

const (
	commandJoin commandKind = iota
	commandSay
)

type command struct {
	kind  commandKind
	arg   string
	reply chan error
}

// Worker is the only goroutine that touches the ChatStream. Other goroutines
// talk to it through Join, Say, Status and Subscribe.
type Worker struct {
	log      logger.Logger
	stream   ports.ChatStreamPort
	clock    clockwork.Clock
	interval time.Duration
	handler  Handler

	// wanted is the last channel a join was requested for and joinLogin the
	// stream login it was sent on; both owned by Run.
	wanted    string
	joinLogin uint64

	cmds    chan command
	done    chan struct{}
	started atomic.Bool
	status  atomic.Pointer[ports.SessionStatus]

	mu     sync.Mutex
	subs   map[int]chan ports.ChatMessage
	nextID int
	closed bool
}

var _ ports.SessionPort = (*Worker)(nil)

type Option func(*Worker)

func WithClock(c clockwork.Clock) Option {
	return func(w *Worker) { w.clock = c }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithChannel joins the channel right after connecting.
func WithChannel(channel string) Option {
	return func(w *Worker) { w.wanted = normalizeChannel(channel) }
}

func WithHandler(h Handler) Option {
	return func(w *Worker) { w.handler = h }
}

func New(log logger.Logger, stream ports.ChatStreamPort, opts ...Option) *Worker {
	w := &Worker{
		log:      log,
		stream:   stream,
		clock:    clockwork.NewRealClock(),
		interval: defaultPollInterval,
		cmds:     make(chan command),
		done:     make(chan struct{}),
		subs:     make(map[int]chan ports.ChatMessage),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.status.Store(&ports.SessionStatus{})
	return w
}

// Run connects, then polls the stream every poll interval until ctx is
// cancelled (nil) or the session is lost (the error). The stream is closed and
// every subscription channel is closed on return. Run may be called once.
func (w *Worker) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("session worker already started")
	}
	defer close(w.done)
	defer w.closeSubscribers()
	defer func() {
		_ = w.stream.Close()
		w.publish()
	}()

	if err := w.stream.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if !w.stream.IsConnected() {
		return irc.ErrLoginRejected
	}

	if w.wanted != "" {
		w.joinLogin = w.stream.Logins()
		if err := w.stream.JoinChannel(w.wanted); err != nil {
			w.log.Warn("Failed to join configured channel", slog.String("channel", w.wanted), slog.String("error", err.Error()))
		}
	}
	w.publish()

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Session worker stopped")
			return nil
		case cmd := <-w.cmds:
			cmd.reply <- w.apply(cmd)
			w.publish()
		case <-ticker.Chan():
			if err := w.tick(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context) error {
	msgs, err := w.stream.Poll(ctx)
	current := w.stream.CurrentChannel()
	for _, msg := range msgs {
		if w.handler != nil {
			w.handler(msg, current)
		}
		w.broadcast(msg)
	}

	if err != nil {
		w.publish()
		if ctx.Err() != nil {
			return nil
		}
		w.log.Error("Chat session ended", err)
		return err
	}

	// a reconnect leaves the stream outside any channel, and a JOIN sent on
	// the old connection may never have been echoed
	login := w.stream.Logins()
	if w.wanted != "" && current != w.wanted && login != w.joinLogin && w.stream.IsConnected() {
		w.log.Info("Rejoining channel after reconnect", slog.String("channel", w.wanted))
		w.joinLogin = login
		if err := w.stream.JoinChannel(w.wanted); err != nil {
			w.log.Warn("Failed to rejoin channel", slog.String("channel", w.wanted), slog.String("error", err.Error()))
		}
	}

	w.publish()
	return nil
}

func (w *Worker) apply(cmd command) error {
	switch cmd.kind {
	case commandJoin:
		if err := w.stream.JoinChannel(cmd.arg); err != nil {
			return err
		}
		w.wanted = normalizeChannel(cmd.arg)
		w.joinLogin = w.stream.Logins()
		return nil
	case commandSay:
		channel := w.stream.CurrentChannel()
		if channel == "" {
			return ErrNotInChannel
		}
		w.stream.SendMessage(channel, cmd.arg)
		return nil
	}
	return fmt.Errorf("unknown command %d", cmd.kind)
}

// Join asks the worker to join a channel. It returns once the JOIN has been
// written; the channel becomes current when the server confirms it.
func (w *Worker) Join(ctx context.Context, channel string) error {
	if normalizeChannel(channel) == "" {
		return fmt.Errorf("%w: empty name", irc.ErrInvalidChannel)
	}
	return w.do(ctx, command{kind: commandJoin, arg: channel})
}

// Say queues text for the current channel.
func (w *Worker) Say(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("empty message")
	}
	return w.do(ctx, command{kind: commandSay, arg: text})
}

func (w *Worker) do(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)

	select {
	case w.cmds <- cmd:
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) Status() ports.SessionStatus {
	return *w.status.Load()
}

func (w *Worker) publish() {
	channel := w.stream.CurrentChannel()
	w.status.Store(&ports.SessionStatus{
		Connected: w.stream.IsConnected(),
		InChannel: channel != "",
		Channel:   channel,
		Pending:   w.stream.Pending(),
	})
}

// Subscribe returns a feed of chat messages and a func that cancels it.
// Messages are dropped for subscribers that do not keep up. The channel is
// closed when the subscription is cancelled or the worker stops.
func (w *Worker) Subscribe() (<-chan ports.ChatMessage, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan ports.ChatMessage, subscriberBuffer)
	if w.closed {
		close(ch)
		return ch, func() {}
	}

	id := w.nextID
	w.nextID++
	w.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if sub, ok := w.subs[id]; ok {
				delete(w.subs, id)
				close(sub)
			}
		})
	}
}

func (w *Worker) broadcast(msg ports.ChatMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, ch := range w.subs {
		select {
		case ch <- msg:
		default:
			w.log.Debug("Subscriber is slow, message dropped", slog.Int("subscriber", id))
		}
	}
}

func (w *Worker) closeSubscribers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, ch := range w.subs {
		close(ch)
		delete(w.subs, id)
	}
	w.closed = true
}

func normalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}
