// Package recorder persists a durable audit trail of append runs, so the
// operator's scheduler can tell an expected closed-market no-op from a real
// failure without parsing logs.
package recorder

import "time"

// RunRecord captures the result of one append run.
type RunRecord struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	// Status is "appended", "no_update" or "failed".
	Status string
	// Row is the written row index for appended runs, zero otherwise.
	Row int
	// TradeDate is the session date the run saw, if it got that far.
	TradeDate time.Time
	// MarkedRow is the row stamped as a week boundary, zero if none.
	MarkedRow  int
	LimitBuilt bool
	// ErrorType and Message are set for failed runs.
	ErrorType string
	Message   string
}

// Recorder persists run history for later inspection.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	Close() error
}
