package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vodeneev/openingline/internal/pkg/config"
	"github.com/Vodeneev/openingline/internal/pkg/metrics"
	"github.com/Vodeneev/openingline/internal/pkg/models"
	"github.com/Vodeneev/openingline/internal/pkg/oddsapi"
	"github.com/Vodeneev/openingline/internal/pkg/quotes"
)

// TickWriter persists one tick's quotes and returns the key written.
type TickWriter interface {
	WriteTick(ctx context.Context, at time.Time, quotes []models.Quote) (string, error)
}

// Snapshot is a read-only copy of the poller's schedule state.
type Snapshot struct {
	State             State     `json:"state"`
	Interval          string    `json:"interval"`
	NextWake          time.Time `json:"next_wake"`
	FirstStart        time.Time `json:"first_start"`
	LastTick          time.Time `json:"last_tick"`
	LastTickID        string    `json:"last_tick_id,omitempty"`
	LastKey           string    `json:"last_key,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	Ticks             int64     `json:"ticks"`
}

type Poller struct {
	sport   string
	regions []string
	books   quotes.BookSet
	loc     *time.Location
	cfg     config.PollerConfig

	source oddsapi.Source
	writer TickWriter
	clock  Clock

	mu         sync.Mutex
	snap       Snapshot
	lastPolled time.Time
}

func NewPoller(cfg *config.Config, loc *time.Location, source oddsapi.Source, writer TickWriter, clock Clock) *Poller {
	if clock == nil {
		clock = RealClock()
	}
	return &Poller{
		sport:   cfg.SportKey,
		regions: cfg.Odds.Regions,
		books:   quotes.NewBookSet(cfg.Books),
		loc:     loc,
		cfg:     cfg.Poller,
		source:  source,
		writer:  writer,
		clock:   clock,
		snap:    Snapshot{Interval: cfg.Poller.Interval.String()},
	}
}

// Snapshot is safe to call from any goroutine.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// tickResult tells the loop when to come back and in which state to wait.
type tickResult struct {
	state    State
	resumeAt time.Time
}

// Run polls until ctx is cancelled. Calling Run again on the same Poller
// resumes after the last polled slot instead of re-aligning.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.cfg.Interval
	target := p.resumeTarget()
	if target.IsZero() {
		p.setState(StateAligning)
		target = Align(p.clock.Now(), interval)
	}

	slog.Info("Poller started", "sport", p.sport, "interval", interval, "first_target", target)

	for {
		p.mu.Lock()
		p.snap.NextWake = target
		p.mu.Unlock()

		if err := p.clock.Sleep(ctx, clampSleep(target.Sub(p.clock.Now()))); err != nil {
			slog.Info("Poller stopped", "sport", p.sport, "reason", err)
			return nil
		}

		p.mu.Lock()
		p.lastPolled = target
		p.mu.Unlock()
		p.setState(StatePolling)

		res, err := p.tick(ctx)
		if ctx.Err() != nil {
			slog.Info("Poller stopped", "sport", p.sport)
			return nil
		}
		now := p.clock.Now()
		if err != nil {
			p.recordError(err)
			target = NextTarget(target, now, interval)
			continue
		}

		p.mu.Lock()
		p.snap.LastError = ""
		p.snap.ConsecutiveErrors = 0
		p.mu.Unlock()

		p.setState(res.state)
		resumeAt := res.resumeAt
		if resumeAt.Before(now) {
			resumeAt = now
		}
		target = NextTarget(target, resumeAt, interval)
		if res.state != StatePolling {
			slog.Info("Poller suspended", "sport", p.sport, "state", res.state, "until", target)
		}
	}
}

func (p *Poller) resumeTarget() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastPolled.IsZero() {
		return time.Time{}
	}
	target := NextTarget(p.lastPolled, p.clock.Now(), p.cfg.Interval)
	if p.snap.NextWake.After(target) {
		target = p.snap.NextWake
	}
	return target
}

func (p *Poller) tick(ctx context.Context) (tickResult, error) {
	if p.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TickTimeout)
		defer cancel()
	}

	now := p.clock.Now()
	t := quotes.Tick{ID: uuid.NewString(), FetchedAt: now}

	board, err := p.source.FetchOdds(ctx, p.sport, p.regions)
	if err != nil {
		return tickResult{}, fmt.Errorf("failed to fetch odds: %w", err)
	}
	events := board.Events

	today := quotes.FilterToDate(events, now, p.loc)
	qs, rowErrs := quotes.Normalize(today, p.books, t)
	rowErrs = append(board.Rejected, rowErrs...)
	for _, re := range rowErrs {
		slog.Warn("Skipping malformed row", "tick_id", t.ID, "event_id", re.EventID, "book", re.Book, "error", re.Err)
		metrics.RowErrors.Inc()
	}
	qs = quotes.Dedup(qs)

	if len(qs) == 0 {
		slog.Info("No games today", "sport", p.sport, "tick_id", t.ID, "events", len(events), "sleep", p.cfg.NoGamesSleep)
		metrics.PollTicks.WithLabelValues("no_games").Inc()
		return tickResult{state: StateSuspendedNoGames, resumeAt: now.Add(p.cfg.NoGamesSleep)}, nil
	}

	first, _ := quotes.FirstCommence(qs)
	p.mu.Lock()
	p.snap.FirstStart = first
	p.mu.Unlock()

	if w := QuietWindow(now, first, p.cfg.StartLag, p.loc); w.Contains(now) {
		slog.Info("Before first game, pausing", "sport", p.sport, "tick_id", t.ID, "first_start", first, "until", w.End)
		metrics.PollTicks.WithLabelValues("off_hours").Inc()
		return tickResult{state: StateSuspendedOffHours, resumeAt: w.End}, nil
	}

	key, err := p.writer.WriteTick(ctx, now, qs)
	if err != nil {
		return tickResult{}, fmt.Errorf("failed to persist tick %s: %w", t.ID, err)
	}

	p.mu.Lock()
	p.snap.LastTick = now
	p.snap.LastTickID = t.ID
	p.snap.LastKey = key
	p.snap.Ticks++
	p.mu.Unlock()

	metrics.PollTicks.WithLabelValues("persisted").Inc()
	metrics.QuotesPersisted.Add(float64(len(qs)))
	metrics.LastTick.Set(float64(now.Unix()))
	slog.Info("Tick persisted", "sport", p.sport, "tick_id", t.ID, "quotes", len(qs), "row_errors", len(rowErrs), "key", key)

	return tickResult{state: StatePolling, resumeAt: now}, nil
}

func (p *Poller) recordError(err error) {
	p.mu.Lock()
	p.snap.LastError = err.Error()
	p.snap.ConsecutiveErrors++
	n := p.snap.ConsecutiveErrors
	p.mu.Unlock()

	p.setState(StateErrorBackoff)
	metrics.PollTicks.WithLabelValues("error").Inc()
	slog.Error("Poll tick failed", "sport", p.sport, "consecutive_errors", n, "error", err)
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.snap.State = s
	p.mu.Unlock()
	metrics.SetState(string(s), allStates)
}
