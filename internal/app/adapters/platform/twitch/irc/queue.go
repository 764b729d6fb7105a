package irc

import (
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// outbound holds lines waiting to be written. User content goes through the
// throttled FIFO, protocol replies (PONG) through the control lane, which is
// never throttled.
type outbound struct {
	clock   clockwork.Clock
	limiter *rate.Limiter

	lines   []string
	control []string
}

// newOutbound allows one throttled line per interval with no burst. The
// token is spent up front, so the first line also waits a full interval.
func newOutbound(clock clockwork.Clock, interval time.Duration) *outbound {
	if interval <= 0 {
		interval = defaultThrottle
	}

	q := &outbound{
		clock:   clock,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
	q.limiter.AllowN(clock.Now(), 1)
	return q
}

func (q *outbound) push(line string) bool {
	if line == "" {
		return false
	}
	q.lines = append(q.lines, line)
	return true
}

func (q *outbound) pushControl(line string) {
	q.control = append(q.control, line)
}

// next pops the head of the FIFO if the interval since the previous pop has
// elapsed. Popping spends the token whether or not the write succeeds.
func (q *outbound) next() (string, bool) {
	if len(q.lines) == 0 || !q.limiter.AllowN(q.clock.Now(), 1) {
		return "", false
	}

	line := q.lines[0]
	q.lines[0] = ""
	q.lines = q.lines[1:]
	return line, true
}

func (q *outbound) takeControl() []string {
	lines := q.control
	q.control = nil
	return lines
}

func (q *outbound) dropControl() {
	q.control = nil
}

func (q *outbound) len() int {
	return len(q.lines)
}
