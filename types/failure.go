package types

import "time"

// FailureCategory is the run-level failure taxonomy. Categories are mutually
// exclusive and checked in declaration order: configuration problems first,
// benign empty results next, then upstream gaps, timeouts, and finally the
// processing catch-all.
type FailureCategory string

// Failure category constants.
const (
	CategoryConfiguration FailureCategory = "configuration_error"
	CategoryNoData        FailureCategory = "no_data_available"
	CategoryUpstream      FailureCategory = "upstream_failure"
	CategoryTimeout       FailureCategory = "timeout"
	CategoryProcessing    FailureCategory = "processing_error"
)

// Alertable reports whether a failure category should reach notification
// channels. no_data_available is a success-shaped outcome and never alerts.
func (c FailureCategory) Alertable() bool {
	return c != CategoryNoData && c != ""
}

// EntityFailureCategory is the entity-level failure taxonomy used by the
// failure ledger.
type EntityFailureCategory string

// Entity failure category constants.
const (
	EntityMissingDependency   EntityFailureCategory = "MISSING_DEPENDENCY"
	EntityIncompleteData      EntityFailureCategory = "INCOMPLETE_DATA"
	EntityInsufficientHistory EntityFailureCategory = "INSUFFICIENT_HISTORY"
	EntityProcessingError     EntityFailureCategory = "PROCESSING_ERROR"
	EntityUnknown             EntityFailureCategory = "UNKNOWN"
)

// FailureType is the fine-grained classification of an incomplete entity,
// filled in either at failure time or by a later reclassification pass.
type FailureType string

// Failure type constants.
const (
	// FailurePlayerDNP: every missing date carries an explicit did-not-play
	// marker in the raw feed. Expected absence, nothing to fix.
	FailurePlayerDNP FailureType = "PLAYER_DNP"
	// FailureDataGap: missing dates are absent from the raw feed entirely.
	// Reprocessing once the feed catches up should fix it.
	FailureDataGap FailureType = "DATA_GAP"
	// FailureMixed: missing dates are a mix of DNP and data gaps.
	FailureMixed FailureType = "MIXED"
	// FailureInsufficientHistory: nothing was expected yet; too early in
	// the season or career to evaluate.
	FailureInsufficientHistory FailureType = "INSUFFICIENT_HISTORY"
	// FailureComplete: actual covers expected; the failure record was stale.
	FailureComplete FailureType = "COMPLETE"
)

// FailureRecord is one entity-level shortfall, appended to the failure
// ledger during a run. Records are never mutated except by an explicit
// reclassification pass that backfills FailureType.
type FailureRecord struct {
	// StageName is the downstream stage that observed the shortfall.
	StageName string
	// AsOf is the processing date.
	AsOf time.Time
	// EntityID identifies the affected entity.
	EntityID string
	// EntityType is the kind of entity.
	EntityType EntityType
	// Category is the coarse entity-failure bucket.
	Category EntityFailureCategory
	// FailureType is the fine-grained classification, empty until known.
	FailureType FailureType
	// CanRetry is true when the cause is believed transient: missing
	// upstream data that has not arrived yet, never a logic bug.
	CanRetry bool
	// ExpectedCount and ActualCount capture the shortfall arithmetic.
	ExpectedCount int
	ActualCount   int
	// MissingDates enumerates the dates expected but not observed.
	MissingDates []time.Time
	// RecordedAt is when the record was written.
	RecordedAt time.Time
}

// Classification is the result of failure classification for one entity.
type Classification struct {
	// FailureType is the determined fine-grained type.
	FailureType FailureType
	// IsCorrectable is true when reprocessing can close the gap.
	IsCorrectable bool
	// ExpectedCount and ActualCount mirror the inputs for the ledger.
	ExpectedCount int
	ActualCount   int
	// MissingDates is expected minus actual, sorted ascending.
	MissingDates []time.Time
}
