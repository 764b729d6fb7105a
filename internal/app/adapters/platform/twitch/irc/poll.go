package irc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"
	"twitchtts/internal/app/adapters/metrics"
	"twitchtts/internal/app/infrastructure/retry"
	"twitchtts/internal/app/ports"

	"github.com/prometheus/client_golang/prometheus"
)

// Poll runs one cycle: pending PONGs are written, at most one queued line
// is sent if the throttle allows it, then everything the server has already
// delivered is read and parsed. Chat messages are returned in arrival order.
//
// A transport fault makes Poll reconnect before returning; messages parsed
// before the fault are still returned. If reconnecting fails the error wraps
// ErrSessionLost.
func (s *ChatStream) Poll(ctx context.Context) ([]ports.ChatMessage, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	s.flushControl()
	s.flushQueue()

	var result []ports.ChatMessage
	var fault error

	// the login reply may already hold complete lines
	result, fault = s.consume(result)

	for fault == nil {
		n, err := s.read()
		if n > 0 {
			s.pending = append(s.pending, s.readBuf[:n]...)
			result, fault = s.consume(result)
		}

		if err != nil {
			if isWouldBlock(err) {
				break
			}
			if errors.Is(err, io.EOF) {
				err = errClosedByServer
			}
			fault = err
		}
	}

	if fault != nil {
		return result, s.reconnectAfter(ctx, fault)
	}

	s.flushControl()
	return result, nil
}

// consume parses every complete line in the pending buffer. A partial line
// longer than maxLineSize is dropped together with its tail.
func (s *ChatStream) consume(result []ports.ChatMessage) ([]ports.ChatMessage, error) {
	if s.discarding {
		idx := bytes.Index(s.pending, crlf)
		if idx == -1 {
			// a CR at the end may be the first half of the terminator
			keep := 0
			if n := len(s.pending); n > 0 && s.pending[n-1] == '\r' {
				keep = 1
			}
			s.pending = append(s.pending[:0], s.pending[len(s.pending)-keep:]...)
			return result, nil
		}
		s.pending = append(s.pending[:0], s.pending[idx+len(crlf):]...)
		s.discarding = false
	}

	lines, rest := splitLines(s.pending)
	if len(rest) > maxLineSize {
		s.log.Warn("Dropping oversized line from IRC", slog.Int("bytes", len(rest)))
		rest = nil
		s.discarding = true
	}
	s.pending = append(s.pending[:0], rest...)

	for _, line := range lines {
		s.log.Trace("< " + line)

		ev := classify(line, s.creds.Username)
		metrics.LinesReceived.With(prometheus.Labels{"kind": ev.kind.String()}).Inc()

		switch ev.kind {
		case kindPing:
			s.queue.pushControl(ev.reply)
		case kindJoin:
			s.log.Info("Joined channel", slog.String("channel", ev.channel))
			s.setChannel(ev.channel)
		case kindMessage:
			result = append(result, ev.chat)
		case kindNotice:
			s.log.Debug("Server notice", slog.String("text", ev.text))
		case kindReconnect:
			return result, errServerReconnect
		}
	}

	return result, nil
}

func (s *ChatStream) read() (int, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.readWait)); err != nil {
		return 0, err
	}
	return s.conn.Read(s.readBuf)
}

func (s *ChatStream) flushControl() {
	for _, line := range s.queue.takeControl() {
		if err := s.write(line, "control"); err != nil {
			return
		}
	}
}

func (s *ChatStream) flushQueue() {
	line, ok := s.queue.next()
	if !ok {
		return
	}
	metrics.QueueDepth.Set(float64(s.queue.len()))

	// a failed write still spends the slot, so a broken socket is not hammered
	_ = s.write(line, "throttled")
}

// reconnectAfter replaces a broken connection. It neither rejoins the previous
// channel nor touches the throttled queue.
func (s *ChatStream) reconnectAfter(ctx context.Context, cause error) error {
	s.log.Warn("IRC connection lost, reconnecting...", slog.String("error", cause.Error()))
	s.dropConn()

	policy := s.reconnect
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		s.log.Warn("Reconnect attempt failed", slog.Int("attempt", attempt), slog.Duration("backoff", backoff), slog.String("error", err.Error()))
	}

	err := retry.Do(ctx, s.clock, policy, func(err error) retry.Action {
		if errors.Is(err, ErrLoginRejected) {
			return retry.Stop
		}
		return retry.Retry
	}, func(ctx context.Context) error {
		err := s.connect(ctx)
		result := "ok"
		if err != nil {
			result = "failed"
		}
		metrics.Reconnects.With(prometheus.Labels{"result": result}).Inc()
		return err
	})
	if err != nil {
		s.log.Error("Chat session lost", err)
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	}

	return nil
}

func isWouldBlock(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (k kind) String() string {
	switch k {
	case kindPing:
		return "ping"
	case kindJoin:
		return "join"
	case kindMessage:
		return "privmsg"
	case kindReconnect:
		return "reconnect"
	case kindNotice:
		return "notice"
	}
	return "other"
}
