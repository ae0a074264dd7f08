// Package trigger fires the end-of-day pipeline once a day at a fixed local time.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Vodeneev/openingline/internal/pkg/config"
	"github.com/Vodeneev/openingline/internal/pkg/models"
	"github.com/Vodeneev/openingline/internal/pkg/scheduler"
	"github.com/Vodeneev/openingline/internal/pkg/supervisor"
)

// RunFunc processes one slate date.
type RunFunc func(ctx context.Context, date string) error

// NewSchedule turns "HH:MM" in loc into a daily cron schedule.
func NewSchedule(timeOfDay string, loc *time.Location) (cron.Schedule, error) {
	hour, minute, err := config.TriggerConfig{TimeOfDay: timeOfDay}.Clock()
	if err != nil {
		return nil, err
	}
	expr := fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), minute, hour)
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule %q: %w", expr, err)
	}
	return sched, nil
}

// PreviousDate is the slate date that has finished by the time at fires.
func PreviousDate(at time.Time, loc *time.Location) string {
	local := at.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day()-1, 12, 0, 0, 0, loc)
	return day.Format(models.DateLayout)
}

type Status struct {
	NextRun   time.Time `json:"next_run"`
	LastFired time.Time `json:"last_fired"`
	LastDate  string    `json:"last_date,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type Trigger struct {
	sched   cron.Schedule
	loc     *time.Location
	clock   scheduler.Clock
	timeout time.Duration
	run     RunFunc

	mu     sync.Mutex
	status Status
}

func New(cfg *config.Config, loc *time.Location, clock scheduler.Clock, run RunFunc) (*Trigger, error) {
	sched, err := NewSchedule(cfg.Trigger.TimeOfDay, loc)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = scheduler.RealClock()
	}
	return &Trigger{sched: sched, loc: loc, clock: clock, timeout: cfg.Trigger.Timeout, run: run}, nil
}

func (t *Trigger) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Run sleeps until each trigger instant and processes the previous local day.
// A failing or panicking run is logged and the loop waits for the next instant.
func (t *Trigger) Run(ctx context.Context) error {
	next := t.sched.Next(t.clock.Now())
	for {
		t.mu.Lock()
		t.status.NextRun = next
		t.mu.Unlock()
		slog.Info("Next daily run scheduled", "at", next)

		wait := next.Sub(t.clock.Now())
		if wait < 0 {
			wait = 0
		}
		if err := t.clock.Sleep(ctx, wait); err != nil {
			slog.Info("Daily trigger stopped", "reason", err)
			return nil
		}

		fired := next
		t.fire(ctx, fired)
		if ctx.Err() != nil {
			return nil
		}

		now := t.clock.Now()
		next = t.sched.Next(fired)
		if !next.After(now) {
			// the run outlasted a whole period
			next = t.sched.Next(now)
		}
	}
}

func (t *Trigger) fire(ctx context.Context, fired time.Time) {
	date := PreviousDate(fired, t.loc)
	slog.Info("Daily trigger fired", "date", date, "fired_at", fired)

	runCtx, cancel := supervisor.CycleContext(ctx, t.timeout)
	defer cancel()
	err := supervisor.Guard(runCtx, func(ctx context.Context) error {
		return t.run(ctx, date)
	})

	t.mu.Lock()
	t.status.LastFired = fired
	t.status.LastDate = date
	t.status.LastError = ""
	if err != nil {
		t.status.LastError = err.Error()
	}
	t.mu.Unlock()

	if err != nil {
		slog.Error("Daily run failed", "date", date, "error", err)
	}
}
