package types

import (
	"errors"
	"fmt"
	"time"
)

// RunStatus is the terminal (or in-flight) status of a stage run.
type RunStatus string

// Run status constants.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunSkipped RunStatus = "skipped"
	RunFailed  RunStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	return s != RunRunning && s != ""
}

// RunRecord is one attempt of one stage for one processing date.
// Records form an append-only history: a completed record is never updated
// in place.
type RunRecord struct {
	// StageName is the pipeline stage that ran.
	StageName string
	// RunID is the globally unique run identifier.
	RunID string
	// AsOf is the processing date the run covered.
	AsOf time.Time
	// Status is the run outcome.
	Status RunStatus
	// StartedAt is when the run began.
	StartedAt time.Time
	// DurationSeconds is the wall-clock run duration.
	DurationSeconds float64
	// RecordsProcessed is the number of output rows the stage persisted.
	RecordsProcessed int64
	// CoveragePct is the completeness of the stage's own output for AsOf,
	// read later by downstream dependency checks.
	CoveragePct float64
	// DependencySummary is a short human-readable account of the
	// dependency check that gated the run.
	DependencySummary string
	// FailureCategory is set when Status is failed.
	FailureCategory FailureCategory
	// Backfill marks runs operating in historical-backfill mode.
	Backfill bool
}

// Validate checks run record consistency before it is appended.
func (r *RunRecord) Validate() error {
	if r.StageName == "" {
		return errors.New("run record requires a stage name")
	}
	if r.RunID == "" {
		return errors.New("run record requires a run id")
	}
	if r.AsOf.IsZero() {
		return errors.New("run record requires a processing date")
	}
	if r.Status == RunFailed && r.FailureCategory == "" {
		return fmt.Errorf("failed run %s has no failure category", r.RunID)
	}
	return nil
}

// UpstreamStatus reports whether it is safe to build on top of an upstream
// stage's most recent run for a date.
type UpstreamStatus struct {
	// Succeeded is true when the most recent run finished successfully.
	Succeeded bool
	// Status is the most recent run's status; empty when no run exists.
	Status RunStatus
	// SafeToProcess is true when a downstream stage may consume the
	// upstream output: the run succeeded, or succeeded partially.
	SafeToProcess bool
	// ErrorMessage explains an unsafe status.
	ErrorMessage string
}
