package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingOptions(delays *[]time.Duration) Options {
	opts := DefaultOptions()
	opts.InitialDelay = time.Second
	opts.MaxDelay = 3 * time.Second
	opts.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
	return opts
}

func TestRunRestartsAfterErrorAndPanic(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Run(context.Background(), "poller", recordingOptions(&delays), func(ctx context.Context) error {
		calls++
		switch calls {
		case 1:
			return errors.New("boom")
		case 2:
			panic("nil map")
		case 3:
			return errors.New("again")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, delays)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Run(ctx, "poller", DefaultOptions(), func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("interrupted")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGuardRecoversPanic(t *testing.T) {
	err := Guard(context.Background(), func(context.Context) error { panic("bad") })
	assert.ErrorContains(t, err, "panic: bad")
}

func TestCycleContext(t *testing.T) {
	ctx, cancel := CycleContext(context.Background(), time.Minute)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	ctx, cancel = CycleContext(context.Background(), 0)
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
