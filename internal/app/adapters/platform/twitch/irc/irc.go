package irc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"
	"twitchtts/internal/app/adapters/metrics"
	"twitchtts/internal/app/infrastructure/config"
	"twitchtts/internal/app/infrastructure/retry"
	"twitchtts/internal/app/ports"
	"twitchtts/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	loginReplySize = 1024
	readBufSize    = 4096
	// longest partial line kept between reads, well above a tagged Twitch line
	maxLineSize    = 16 << 10

	defaultThrottle     = 5 * time.Second
	defaultReadWait     = 10 * time.Millisecond
	defaultLoginTimeout = 10 * time.Second
)

var loginFailures = []string{
	"login authentication failed",
	"improperly formatted auth",
	"login unsuccessful",
}

// ChatStream is a single Twitch chat session over one socket. It is driven
// by the caller through Poll and is not safe for concurrent use, except for
// IsConnected and CurrentChannel which may be read from any goroutine.
type ChatStream struct {
	log   logger.Logger
	creds config.Credentials

	addr         string
	dialer       ports.Dialer
	clock        clockwork.Clock
	throttle     time.Duration
	readWait     time.Duration
	loginTimeout time.Duration
	reconnect    retry.Policy

	conn       net.Conn
	pending    []byte
	discarding bool // skipping the rest of an oversized line
	readBuf    []byte
	queue      *outbound

	connected atomic.Bool
	logins    atomic.Uint64
	channel   atomic.Pointer[string]
}

var _ ports.ChatStreamPort = (*ChatStream)(nil)

type Option func(*ChatStream)

func WithEndpoint(addr string) Option {
	return func(s *ChatStream) { s.addr = addr }
}

// WithDialer replaces the plain TCP dialer, e.g. with a proxy or TLS dialer.
func WithDialer(d ports.Dialer) Option {
	return func(s *ChatStream) { s.dialer = d }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *ChatStream) { s.clock = c }
}

// WithThrottle sets the minimum spacing between queued lines. Zero or less
// keeps the default.
func WithThrottle(d time.Duration) Option {
	return func(s *ChatStream) {
		if d > 0 {
			s.throttle = d
		}
	}
}

// WithReadWait sets how long a poll read waits before it counts as "no data".
func WithReadWait(d time.Duration) Option {
	return func(s *ChatStream) { s.readWait = d }
}

func WithLoginTimeout(d time.Duration) Option {
	return func(s *ChatStream) { s.loginTimeout = d }
}

func WithReconnectPolicy(p retry.Policy) Option {
	return func(s *ChatStream) { s.reconnect = p }
}

func New(log logger.Logger, creds config.Credentials, opts ...Option) *ChatStream {
	s := &ChatStream{
		log:          log,
		creds:        creds,
		addr:         config.DefaultAddress,
		dialer:       &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
		clock:        clockwork.NewRealClock(),
		throttle:     defaultThrottle,
		readWait:     defaultReadWait,
		loginTimeout: defaultLoginTimeout,
		reconnect: retry.Policy{
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			MaxBackoff:     time.Minute,
		},
		readBuf: make([]byte, readBufSize),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.queue = newOutbound(s.clock, s.throttle)

	empty := ""
	s.channel.Store(&empty)
	return s
}

// Connect dials the server and logs in. A rejected login is not an error:
// Connect returns nil and IsConnected reports false. Dial and I/O failures
// are returned.
func (s *ChatStream) Connect(ctx context.Context) error {
	err := s.connect(ctx)
	if errors.Is(err, ErrLoginRejected) {
		return nil
	}
	return err
}

func (s *ChatStream) connect(ctx context.Context) error {
	s.dropConn()

	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		s.log.Error("Failed to connect to IRC chat Twitch", err, slog.String("address", s.addr))
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}

	reply, err := s.login(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	s.conn = conn
	s.pending = append(s.pending[:0], reply...)
	s.setConnected(true)
	s.logins.Add(1)
	s.log.Info("Connected to IRC chat Twitch", slog.String("address", s.addr), slog.String("nick", s.creds.Username))
	return nil
}

// login sends PASS and NICK and inspects a single reply read.
func (s *ChatStream) login(conn net.Conn) ([]byte, error) {
	if err := conn.SetDeadline(time.Now().Add(s.loginTimeout)); err != nil {
		return nil, fmt.Errorf("set login deadline: %w", err)
	}

	for _, line := range []string{"PASS " + s.creds.OAuth, "NICK " + s.creds.Username} {
		if err := writeLine(conn, line); err != nil {
			return nil, fmt.Errorf("send login: %w", err)
		}
		metrics.LinesSent.With(prometheus.Labels{"lane": "login"}).Inc()
	}
	s.log.Trace("> PASS oauth:***")
	s.log.Trace("> NICK " + s.creds.Username)

	buf := make([]byte, loginReplySize)
	n, err := conn.Read(buf)
	if n == 0 && err != nil {
		return nil, fmt.Errorf("read login reply: %w", err)
	}
	reply := buf[:n]
	s.log.Trace("< login reply", slog.String("data", string(reply)))

	lower := strings.ToLower(string(reply))
	for _, marker := range loginFailures {
		if strings.Contains(lower, marker) {
			s.log.Warn("Login authentication to IRC failed", slog.String("nick", s.creds.Username), slog.String("reply", strings.TrimSpace(string(reply))))
			return nil, ErrLoginRejected
		}
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clear login deadline: %w", err)
	}
	return reply, nil
}

// JoinChannel sends JOIN right away, bypassing the throttled queue. The
// channel only becomes current once the server echoes the join back.
func (s *ChatStream) JoinChannel(channel string) error {
	name := normalizeChannel(channel)
	if !isName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}
	if s.conn == nil {
		return ErrNotConnected
	}

	if err := s.write("JOIN #"+name, "join"); err != nil {
		return fmt.Errorf("join #%s: %w", name, err)
	}
	return nil
}

// SendMessage queues a PRIVMSG for the channel. Line breaks in text are
// replaced so the message stays a single protocol line.
func (s *ChatStream) SendMessage(channel, text string) {
	text = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(text)
	s.Enqueue(fmt.Sprintf("PRIVMSG #%s :%s", normalizeChannel(channel), text))
}

// Enqueue appends a raw protocol line (without CRLF) to the throttled queue.
// Empty lines are ignored.
func (s *ChatStream) Enqueue(line string) {
	if s.queue.push(line) {
		metrics.QueueDepth.Set(float64(s.queue.len()))
	}
}

func (s *ChatStream) IsConnected() bool {
	return s.connected.Load()
}

// CurrentChannel is the channel from the last JOIN echo, without '#'.
func (s *ChatStream) CurrentChannel() string {
	return *s.channel.Load()
}

// Logins counts accepted logins, the first connect included. A change tells
// the caller that a reconnect happened.
func (s *ChatStream) Logins() uint64 {
	return s.logins.Load()
}

// Pending is the number of lines waiting in the throttled queue.
func (s *ChatStream) Pending() int {
	return s.queue.len()
}

func (s *ChatStream) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.setConnected(false)
	s.setChannel("")
	return err
}

func (s *ChatStream) dropConn() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.pending = s.pending[:0]
	s.discarding = false
	s.queue.dropControl()
	s.setConnected(false)
	s.setChannel("")
}

func (s *ChatStream) setConnected(v bool) {
	s.connected.Store(v)
	metrics.Connected.Set(metrics.BoolValue(v))
}

func (s *ChatStream) setChannel(name string) {
	prev := s.channel.Swap(&name)
	if *prev == name {
		return
	}
	if *prev != "" {
		metrics.CurrentChannel.DeleteLabelValues(*prev)
	}
	if name != "" {
		metrics.CurrentChannel.WithLabelValues(name).Set(1)
	}
}

func (s *ChatStream) write(line, lane string) error {
	if s.conn == nil {
		return ErrNotConnected
	}

	err := writeLine(s.conn, line)
	if err != nil {
		metrics.SendErrors.Inc()
		s.log.Error("Failed to write line to IRC", err, slog.String("lane", lane))
		return err
	}

	metrics.LinesSent.With(prometheus.Labels{"lane": lane}).Inc()
	s.log.Trace("> "+line, slog.String("lane", lane))
	return nil
}

func writeLine(conn net.Conn, line string) error {
	_, err := conn.Write([]byte(line + "\r\n"))
	return err
}

func normalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}
