package synchronizer

import (
	"financials-sync/src/interfaces"
	"financials-sync/src/logger"
	"financials-sync/src/models"
)

// NopReporter drops every event.
type NopReporter struct{}

func (NopReporter) Report(models.MProgressEvent) {}

// -----------------------------------------------------------------------------

// MultiReporter fans events out in order.
type MultiReporter []interfaces.IProgressReporter

func (m MultiReporter) Report(event models.MProgressEvent) {
	for _, r := range m {
		if r != nil {
			r.Report(event)
		}
	}
}

// -----------------------------------------------------------------------------

// LogReporter writes live progress lines.
type LogReporter struct {
	Logger *logger.Logger
}

func (r LogReporter) Report(event models.MProgressEvent) {
	switch event.Type {
	case models.ProgressUnitStarted:
		r.Logger.Info("[%d/%d] Processing %s (%s)", event.Index+1, event.Total, event.Unit.Symbol, event.Unit.Subject)
	case models.ProgressAttemptFailed:
		r.Logger.Warning("[%d/%d] %s: %s", event.Index+1, event.Total, event.Unit.Symbol, event.Error)
	case models.ProgressUnitFinished:
		if event.Unit.Succeeded {
			r.Logger.Info("[%d/%d] Updated %s", event.Index+1, event.Total, event.Unit.Symbol)
		} else {
			r.Logger.Error("[%d/%d] Failed %s after %d attempts: %s", event.Index+1, event.Total, event.Unit.Symbol, event.Unit.Attempts, event.Unit.LastError)
		}
	}
}
