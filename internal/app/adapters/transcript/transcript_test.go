package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "transcript.log")
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	tr := New(path, clock)
	require.NoError(t, tr.Speak("alice said: hi"))
	clock.Advance(time.Minute)
	require.NoError(t, tr.Speak("bob said: hello"))
	require.NoError(t, tr.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"2024-05-01T12:00:00Z alice said: hi\n"+
			"2024-05-01T12:01:00Z bob said: hello\n",
		string(data))
}
