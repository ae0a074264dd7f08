// Package supervisor keeps a long-running loop alive across errors and panics.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Vodeneev/openingline/internal/pkg/metrics"
)

// LoopFunc runs until ctx is done. Returning nil with a live ctx ends supervision.
type LoopFunc func(ctx context.Context) error

type Options struct {
	// InitialDelay is the pause before the first restart; it doubles up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// ResetAfter resets the delay once a run has stayed up this long.
	ResetAfter time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func DefaultOptions() Options {
	return Options{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		ResetAfter:   10 * time.Minute,
	}
}

// Run calls fn until ctx is cancelled, restarting it after an error or panic.
func Run(ctx context.Context, component string, opts Options, fn LoopFunc) error {
	sleep := opts.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	delay := opts.InitialDelay
	restarts := 0

	for {
		started := time.Now()
		err := safeRun(ctx, fn)
		if ctx.Err() != nil {
			slog.Info("Supervisor stopped", "component", component, "restarts", restarts)
			return nil
		}
		if err == nil {
			slog.Info("Loop finished", "component", component)
			return nil
		}

		if opts.ResetAfter > 0 && time.Since(started) >= opts.ResetAfter {
			delay = opts.InitialDelay
		}
		restarts++
		metrics.SupervisorRestarts.WithLabelValues(component).Inc()
		slog.Error("supervisor restart", "component", component, "restarts", restarts, "delay", delay, "error", err)

		if err := sleep(ctx, delay); err != nil {
			slog.Info("Supervisor stopped", "component", component, "restarts", restarts)
			return nil
		}
		delay *= 2
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
}

func safeRun(ctx context.Context, fn LoopFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			slog.Error("Recovered panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return fn(ctx)
}

// Guard runs fn once and turns a panic into an error.
func Guard(ctx context.Context, fn LoopFunc) error {
	return safeRun(ctx, fn)
}

// CycleContext derives a context for one cycle with optional timeout.
func CycleContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return ctx, func() {} // No-op cancel function
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
