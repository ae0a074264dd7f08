// Package scheduler runs the wall-clock aligned odds poll loop.
package scheduler

import (
	"context"
	"time"
)

type State string

const (
	StateAligning          State = "ALIGNING"
	StatePolling           State = "POLLING"
	StateSuspendedNoGames  State = "SUSPENDED_NO_GAMES"
	StateSuspendedOffHours State = "SUSPENDED_OFF_HOURS"
	StateErrorBackoff      State = "ERROR_BACKOFF"
)

var allStates = []string{
	string(StateAligning),
	string(StatePolling),
	string(StateSuspendedNoGames),
	string(StateSuspendedOffHours),
	string(StateErrorBackoff),
}

// Clock is the time source of the loop. Sleep returns ctx.Err() when cancelled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock is backed by the time package.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
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

// Align returns the first multiple of interval at or after now.
// Multiples are counted from the zero time, which matches the wall clock for
// any interval that divides an hour.
func Align(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return now
	}
	t := now.Truncate(interval)
	if t.Equal(now) {
		return now
	}
	return t.Add(interval)
}

// NextTarget returns prev+interval, skipping every aligned slot that is already
// in the past at now. The result is always after prev.
func NextTarget(prev, now time.Time, interval time.Duration) time.Time {
	target := prev.Add(interval)
	if now.After(target) {
		missed := (now.Sub(target) + interval - 1) / interval
		target = target.Add(missed * interval)
	}
	return target
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// QuietWindow is the stretch from local midnight of now until lag before the
// first event of the day. Nothing worth recording moves inside it.
func QuietWindow(now, firstStart time.Time, lag time.Duration, loc *time.Location) Window {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{Start: midnight, End: firstStart.Add(-lag)}
}

// clampSleep never lets a computed sleep go negative.
func clampSleep(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
