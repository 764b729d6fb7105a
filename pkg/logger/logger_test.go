package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogLogger_SetLogLevel(t *testing.T) {
	l := Nop()

	for _, lvl := range []string{"trace", "debug", "info", "warn", "error", "fatal"} {
		l.SetLogLevel(lvl)
		assert.Equal(t, lvl, l.GetLogLevel())
	}

	l.SetLogLevel("verbose")
	assert.Equal(t, "info", l.GetLogLevel())
}

func TestSlogLogger_TraceLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithConsole(&buf), WithFile("", 0))
	l.SetLogLevel("trace")

	l.Trace("wire line", "line", "PING :tmi.twitch.tv")
	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "wire line")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithConsole(&buf), WithFile("", 0))
	l.SetLogLevel("warn")

	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestPrefixedLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewPrefixedLogger(New(WithConsole(&buf), WithFile("", 0)), "irc")

	l.Error("write failed", nil)
	assert.True(t, strings.Contains(buf.String(), "[irc] write failed"))
	assert.Contains(t, buf.String(), "component=irc")

	buf.Reset()
	l.Info("joined", "channel", "foo")
	assert.Contains(t, buf.String(), "component=irc channel=foo")
}
