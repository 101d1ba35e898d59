// Package metrics exposes Prometheus collectors for quote sessions and sync runs.
package metrics

import (
	"financials-sync/src/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_sessions_total",
		Help: "Quote sessions by terminal state",
	}, []string{"state"})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quote_session_duration_seconds",
		Help:    "Wall-clock time from dial to session end",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30},
	})

	FieldsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_fields_merged_total",
		Help: "Snapshot fields written from quote deltas",
	})

	MalformedSegments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_malformed_segments_total",
		Help: "Frame payloads skipped because they could not be decoded",
	})

	UnframedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_unframed_messages_total",
		Help: "Transport messages dropped because they did not start with a frame header",
	})

	AttemptsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_attempts_failed_total",
		Help: "Failed synchronization attempts (session or store)",
	})

	UnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_companies_total",
		Help: "Companies processed by outcome",
	}, []string{"result"})

	RunProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_run_progress_ratio",
		Help: "Fraction of the current run already processed",
	})

	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Completed batch runs",
	})
)

// -----------------------------------------------------------------------------

// Reporter turns synchronizer progress events into metric updates.
type Reporter struct{}

func (Reporter) Report(event models.MProgressEvent) {
	switch event.Type {
	case models.ProgressRunStarted:
		RunProgress.Set(0)
	case models.ProgressAttemptFailed:
		AttemptsFailed.Inc()
	case models.ProgressUnitFinished:
		result := "failed"
		if event.Unit != nil && event.Unit.Succeeded {
			result = "succeeded"
		}
		UnitsTotal.WithLabelValues(result).Inc()
		if event.Total > 0 {
			RunProgress.Set(float64(event.Index+1) / float64(event.Total))
		}
	case models.ProgressRunFinished:
		RunsTotal.Inc()
	}
}
