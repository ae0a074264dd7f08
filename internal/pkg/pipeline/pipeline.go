// Package pipeline runs the end-of-day job: select opening lines from the day's
// quote log, merge them into the history and publish the reports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vodeneev/openingline/internal/pkg/config"
	"github.com/Vodeneev/openingline/internal/pkg/lease"
	"github.com/Vodeneev/openingline/internal/pkg/metrics"
	"github.com/Vodeneev/openingline/internal/pkg/models"
	"github.com/Vodeneev/openingline/internal/pkg/openingline"
	"github.com/Vodeneev/openingline/internal/pkg/report"
	"github.com/Vodeneev/openingline/internal/pkg/storage"
)

// Result describes one pipeline run. It is served on /status.
type Result struct {
	RunID       string    `json:"run_id"`
	Date        string    `json:"date"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Quotes      int       `json:"quotes"`
	Lines       int       `json:"opening_lines"`
	HistoryRows int       `json:"history_rows"`
	Reports     []string  `json:"reports,omitempty"`
	Skipped     bool      `json:"skipped"`
	Error       string    `json:"error,omitempty"`
}

type Deps struct {
	QuoteLog *storage.QuoteLog
	History  *storage.HistoryStore
	Reports  *report.Generator // nil disables reports
	Notifier report.Notifier   // nil disables the summary message
	Locker   lease.Locker
}

type Pipeline struct {
	sport    string
	leaseTTL time.Duration
	deps     Deps

	mu   sync.Mutex
	last Result
}

func New(cfg *config.Config, deps Deps) *Pipeline {
	if deps.Locker == nil {
		deps.Locker = lease.NoopLocker{}
	}
	return &Pipeline{sport: cfg.SportKey, leaseTTL: cfg.Lease.TTL, deps: deps}
}

// LastRun returns the most recent run result.
func (p *Pipeline) LastRun() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run processes date (YYYY-MM-DD). A day with no logged quotes is skipped, not an error.
func (p *Pipeline) Run(ctx context.Context, date string) (res Result, err error) {
	res = Result{RunID: uuid.NewString(), Date: date, StartedAt: time.Now()}
	logger := slog.With("run_id", res.RunID, "date", date, "sport", p.sport)

	defer func() {
		res.FinishedAt = time.Now()
		switch {
		case err != nil:
			res.Error = err.Error()
			if errors.Is(err, lease.ErrNotAcquired) {
				metrics.PipelineRuns.WithLabelValues("locked").Inc()
			} else {
				metrics.PipelineRuns.WithLabelValues("error").Inc()
			}
			logger.Error("Pipeline failed", "error", err, "duration", res.FinishedAt.Sub(res.StartedAt))
		case res.Skipped:
			metrics.PipelineRuns.WithLabelValues("empty").Inc()
		default:
			metrics.PipelineRuns.WithLabelValues("ok").Inc()
			logger.Info("Pipeline finished", "opening_lines", res.Lines, "history_rows", res.HistoryRows, "duration", res.FinishedAt.Sub(res.StartedAt))
		}
		p.mu.Lock()
		p.last = res
		p.mu.Unlock()
	}()

	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return res, fmt.Errorf("invalid date %q: %w", date, err)
	}

	release, err := p.deps.Locker.Acquire(ctx, "history:"+p.sport, p.leaseTTL)
	if err != nil {
		return res, fmt.Errorf("failed to acquire history lease: %w", err)
	}
	defer func() {
		// release even when ctx is already cancelled
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := release(relCtx); relErr != nil {
			logger.Warn("Failed to release history lease", "error", relErr)
		}
	}()
	logger.Info("Pipeline started")

	quotes, err := p.deps.QuoteLog.ReadDay(ctx, date)
	if err != nil {
		return res, err
	}
	res.Quotes = len(quotes)
	if len(quotes) == 0 {
		logger.Warn("No quotes logged for date, skipping")
		res.Skipped = true
		return res, nil
	}

	lines := openingline.Select(quotes)
	res.Lines = len(lines)
	metrics.OpeningLines.Set(float64(len(lines)))
	logger.Info("Opening lines selected", "quotes", len(quotes), "opening_lines", len(lines))

	if err := p.deps.History.WriteDay(ctx, date, lines); err != nil {
		return res, fmt.Errorf("failed to write daily opening lines: %w", err)
	}

	total, err := p.deps.History.Append(ctx, date, lines)
	if err != nil {
		return res, fmt.Errorf("failed to merge history: %w", err)
	}
	res.HistoryRows = total
	metrics.HistoryRows.Set(float64(total))

	if p.deps.Reports == nil {
		return res, nil
	}

	daily, keys, err := p.deps.Reports.Generate(ctx, openingline.PricePairs(lines), date, false)
	res.Reports = append(res.Reports, keys...)
	if err != nil {
		return res, fmt.Errorf("daily report: %w", err)
	}

	rows, err := p.deps.History.Load(ctx)
	if err != nil {
		return res, err
	}
	all, keys, err := p.deps.Reports.Generate(ctx, historyPairs(rows), date, true)
	res.Reports = append(res.Reports, keys...)
	if err != nil {
		return res, fmt.Errorf("aggregate report: %w", err)
	}

	if p.deps.Notifier != nil {
		if err := p.deps.Notifier.Notify(ctx, report.FormatSummary(p.sport, daily, all)); err != nil {
			logger.Warn("Failed to send summary", "error", err)
		}
	}
	return res, nil
}

func historyPairs(rows []models.HistoryRow) []models.PricePair {
	out := make([]models.PricePair, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Prices())
	}
	return out
}
