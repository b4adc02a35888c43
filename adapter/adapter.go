// Package adapter defines the stage-completion signal boundary.
//
// Adapters publish stage completion events to downstream systems so the
// next pipeline stage can trigger without polling. Publish failures are
// non-fatal to the run: the lifecycle controller logs and counts them
// but never fails a run over a signal.
package adapter

import "context"

// SignalVersion is the wire contract version of the event payload.
const SignalVersion = "1.0"

// Signal outcome values.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeNoData  = "no_data"
	OutcomeFailed  = "failed"
)

// StageCompletedEvent is the payload published when a stage run finishes.
type StageCompletedEvent struct {
	ContractVersion string            `json:"contract_version"`
	EventType       string            `json:"event_type"` // always "stage_completed"
	StageName       string            `json:"stage_name"`
	RunID           string            `json:"run_id"`
	CorrelationID   string            `json:"correlation_id,omitempty"`
	AsOfDate        string            `json:"as_of_date"`
	OutputLocation  string            `json:"output_location,omitempty"`
	Status          string            `json:"status"` // success, partial, no_data, failed
	RecordCount     int64             `json:"record_count"`
	DurationSeconds float64           `json:"duration_seconds"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Adapter publishes stage completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a stage completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *StageCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
