package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection refused")

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), clockwork.NewFakeClock(), Policy{MaxAttempts: 3}, nil, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_StopIsPermanent(t *testing.T) {
	errAuth := errors.New("login rejected")
	calls := 0
	err := Do(context.Background(), clockwork.NewFakeClock(), Policy{MaxAttempts: 5},
		func(error) Action { return Stop },
		func(context.Context) error {
			calls++
			return errAuth
		})

	var perm *PermanentError
	require.ErrorAs(t, err, &perm)
	assert.ErrorIs(t, err, errAuth)
	assert.Equal(t, 1, calls)
}

func TestDo_ExponentialBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var backoffs []time.Duration

	p := Policy{
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     3 * time.Second,
		OnRetry: func(_ int, _ error, d time.Duration) {
			backoffs = append(backoffs, d)
		},
	}

	done := make(chan error, 1)
	go func() {
		done <- Do(context.Background(), clock, p, nil, func(context.Context) error { return errTransient })
	}()

	for i := 0; i < 3; i++ {
		require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
		clock.Advance(3 * time.Second)
	}

	err := <-done
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, backoffs)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, clockwork.NewFakeClock(), Policy{MaxAttempts: 3, InitialBackoff: time.Hour}, nil,
		func(context.Context) error { return errTransient })
	assert.ErrorIs(t, err, context.Canceled)
}
