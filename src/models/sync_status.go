package models

import "time"

// MSyncUnit tracks one company while the synchronizer works on it.
type MSyncUnit struct {
	Symbol    string `json:"symbol"`
	Subject   string `json:"subject"` // e.g., "CSELK:HAYL.N0000"
	Attempts  int    `json:"attempts"`
	Succeeded bool   `json:"succeeded"`
	LastError string `json:"last_error,omitempty"`
}

// -----------------------------------------------------------------------------

// MSyncSummary is the result of one batch run. Per-company failures are
// reported as progress events, only the counts end up here.
type MSyncSummary struct {
	Attempted       int     `json:"attempted"`
	Succeeded       int     `json:"succeeded"`
	Interrupted     bool    `json:"interrupted"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Failed returns the number of companies that exhausted their attempts.
func (s MSyncSummary) Failed() int {
	return s.Attempted - s.Succeeded
}

// -----------------------------------------------------------------------------
// Progress events
// -----------------------------------------------------------------------------

type MProgressType string

const (
	ProgressRunStarted    MProgressType = "RUN_STARTED"
	ProgressUnitStarted   MProgressType = "UNIT_STARTED"
	ProgressAttemptFailed MProgressType = "ATTEMPT_FAILED"
	ProgressUnitFinished  MProgressType = "UNIT_FINISHED"
	ProgressRunFinished   MProgressType = "RUN_FINISHED"
)

// MProgressEvent is emitted by the synchronizer as work happens.
type MProgressEvent struct {
	Type      MProgressType `json:"type"`
	Index     int           `json:"index"` // 0-based position in the run
	Total     int           `json:"total"`
	Company   *MCompany     `json:"company,omitempty"`
	Unit      *MSyncUnit    `json:"unit,omitempty"`
	Error     string        `json:"error,omitempty"`
	Summary   *MSyncSummary `json:"summary,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MRunStatus is the live view of the current (or last) run served by the status API.
type MRunStatus struct {
	Running     bool          `json:"running"`
	Total       int           `json:"total"`
	Processed   int           `json:"processed"`
	Succeeded   int           `json:"succeeded"`
	Current     string        `json:"current,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	LastSummary *MSyncSummary `json:"last_summary,omitempty"`
	Failures    []MSyncUnit   `json:"failures"`
}
