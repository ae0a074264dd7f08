// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "openingline"

var (
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_ticks_total",
		Help:      "Poll ticks by outcome (persisted, no_games, off_hours, error).",
	}, []string{"result"})

	QuotesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_persisted_total",
		Help:      "Quotes written to the raw quote log.",
	})

	RowErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "row_errors_total",
		Help:      "Feed rows skipped by the normalizer.",
	})

	LastTick = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_tick_timestamp_seconds",
		Help:      "Unix time of the last persisted tick.",
	})

	SchedulerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduler_state",
		Help:      "1 for the current scheduler state, 0 otherwise.",
	}, []string{"state"})

	StoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_retries_total",
		Help:      "Blob store operations retried after a failure.",
	}, []string{"op"})

	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "End-of-day pipeline runs by outcome (ok, empty, error, locked).",
	}, []string{"result"})

	OpeningLines = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pipeline_opening_lines",
		Help:      "Opening lines selected by the last pipeline run.",
	})

	HistoryRows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_rows",
		Help:      "Rows in the history table after the last merge.",
	})

	SupervisorRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "supervisor_restarts_total",
		Help:      "Inner loop restarts after an error or panic.",
	}, []string{"component"})
)

// SetState marks state as current and clears the others.
func SetState(state string, all []string) {
	for _, s := range all {
		SchedulerState.WithLabelValues(s).Set(0)
	}
	SchedulerState.WithLabelValues(state).Set(1)
}
