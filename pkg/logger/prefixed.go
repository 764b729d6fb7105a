package logger

import (
	"fmt"
	"log/slog"
)

// PrefixedLogger tags a component's output: the message reads "[irc] connected"
// and the record carries component=irc, so file logs can be filtered by it.
type PrefixedLogger struct {
	inner     Logger
	component string
}

func NewPrefixedLogger(inner Logger, component string) *PrefixedLogger {
	return &PrefixedLogger{
		inner:     inner,
		component: component,
	}
}

func (p *PrefixedLogger) tag(msg string, args []any) (string, []any) {
	tagged := make([]any, 0, len(args)+1)
	tagged = append(tagged, slog.String("component", p.component))
	return fmt.Sprintf("[%s] %s", p.component, msg), append(tagged, args...)
}

func (p *PrefixedLogger) SetLogLevel(levelStr string) {
	p.inner.SetLogLevel(levelStr)
}

func (p *PrefixedLogger) GetLogLevel() string {
	return p.inner.GetLogLevel()
}

func (p *PrefixedLogger) Trace(msg string, args ...any) {
	msg, args = p.tag(msg, args)
	p.inner.Trace(msg, args...)
}

func (p *PrefixedLogger) Debug(msg string, args ...any) {
	msg, args = p.tag(msg, args)
	p.inner.Debug(msg, args...)
}

func (p *PrefixedLogger) Info(msg string, args ...any) {
	msg, args = p.tag(msg, args)
	p.inner.Info(msg, args...)
}

func (p *PrefixedLogger) Warn(msg string, args ...any) {
	msg, args = p.tag(msg, args)
	p.inner.Warn(msg, args...)
}

func (p *PrefixedLogger) Error(msg string, err error, args ...any) {
	msg, args = p.tag(msg, args)
	p.inner.Error(msg, err, args...)
}

func (p *PrefixedLogger) Fatal(msg string, err error, args ...any) {
	msg, args = p.tag(msg, args)
	p.inner.Fatal(msg, err, args...)
}
