package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/openingline/internal/pkg/config"
)

var la, _ = time.LoadLocation("America/Los_Angeles")

type fakeClock struct {
	now       time.Time
	sleeps    []time.Duration
	maxSleeps int
	cancel    context.CancelFunc
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if len(c.sleeps) >= c.maxSleeps {
		c.cancel()
		return context.Canceled
	}
	c.now = c.now.Add(d)
	return nil
}

func TestNewScheduleRollsOver(t *testing.T) {
	sched, err := NewSchedule("02:30", la)
	require.NoError(t, err)

	before := time.Date(2024, 3, 1, 1, 0, 0, 0, la)
	assert.True(t, sched.Next(before).Equal(time.Date(2024, 3, 1, 2, 30, 0, 0, la)))

	after := time.Date(2024, 3, 1, 3, 0, 0, 0, la)
	assert.True(t, sched.Next(after).Equal(time.Date(2024, 3, 2, 2, 30, 0, 0, la)))

	// exactly at the instant: the next one is tomorrow
	at := time.Date(2024, 3, 1, 2, 30, 0, 0, la)
	assert.True(t, sched.Next(at).Equal(time.Date(2024, 3, 2, 2, 30, 0, 0, la)))
}

func TestNewScheduleInvalid(t *testing.T) {
	_, err := NewSchedule("25:00", la)
	assert.Error(t, err)
	_, err = NewSchedule("2pm", la)
	assert.Error(t, err)
}

func TestPreviousDate(t *testing.T) {
	assert.Equal(t, "2024-02-29", PreviousDate(time.Date(2024, 3, 1, 2, 30, 0, 0, la), la))
	// 10:30 UTC is still 02:30 in Los Angeles
	assert.Equal(t, "2024-02-29", PreviousDate(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), la))
}

func newTrigger(t *testing.T, start time.Time, maxSleeps int, run RunFunc) (*Trigger, *fakeClock, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	clock := &fakeClock{now: start, maxSleeps: maxSleeps, cancel: cancel}
	cfg := &config.Config{Trigger: config.TriggerConfig{TimeOfDay: "02:30", Timeout: time.Minute}}
	tr, err := New(cfg, la, clock, run)
	require.NoError(t, err)
	return tr, clock, ctx
}

func TestTriggerRunsPreviousDay(t *testing.T) {
	var dates []string
	tr, clock, ctx := newTrigger(t, time.Date(2024, 3, 1, 1, 0, 0, 0, la), 3, func(ctx context.Context, date string) error {
		dates = append(dates, date)
		return nil
	})

	require.NoError(t, tr.Run(ctx))

	assert.Equal(t, []string{"2024-02-29", "2024-03-01"}, dates)
	assert.Equal(t, []time.Duration{90 * time.Minute, 24 * time.Hour, 24 * time.Hour}, clock.sleeps)
	assert.Equal(t, "2024-03-01", tr.Status().LastDate)
}

func TestTriggerSurvivesFailures(t *testing.T) {
	calls := 0
	tr, _, ctx := newTrigger(t, time.Date(2024, 3, 1, 1, 0, 0, 0, la), 3, func(ctx context.Context, date string) error {
		calls++
		if calls == 1 {
			panic("corrupt tick")
		}
		return errors.New("store down")
	})

	require.NoError(t, tr.Run(ctx))
	assert.Equal(t, 2, calls)
	assert.Contains(t, tr.Status().LastError, "store down")
}

func TestTriggerLongRunSkipsToNextInstant(t *testing.T) {
	var clock *fakeClock
	tr, clock, ctx := newTrigger(t, time.Date(2024, 3, 1, 1, 0, 0, 0, la), 2, func(ctx context.Context, date string) error {
		clock.now = clock.now.Add(25 * time.Hour)
		return nil
	})

	require.NoError(t, tr.Run(ctx))
	// fired at 03-01 02:30, finished at 03-02 03:30, next is 03-03 02:30
	assert.Equal(t, 23*time.Hour, clock.sleeps[1])
}
