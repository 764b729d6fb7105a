package transcript

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Transcript is a speech sink that appends every spoken line to a rotated
// text file, one timestamped line per message.
type Transcript struct {
	mu    sync.Mutex
	out   io.WriteCloser
	clock clockwork.Clock
}

func New(filename string, clock clockwork.Clock) *Transcript {
	return NewWithWriter(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    16,
		MaxBackups: 8,
		MaxAge:     30,
		Compress:   true,
	}, clock)
}

func NewWithWriter(w io.WriteCloser, clock clockwork.Clock) *Transcript {
	return &Transcript{out: w, clock: clock}
}

func (t *Transcript) Speak(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := fmt.Fprintf(t.out, "%s %s\n", t.clock.Now().Format(time.RFC3339), line)
	return err
}

func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.Close()
}
