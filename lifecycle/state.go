// Package lifecycle drives one stage run through its state machine.
//
// A run moves INIT -> LOCK_ACQUIRE -> DEPENDENCY_CHECK -> EXTRACT ->
// VALIDATE -> COMPUTE -> PERSIST -> SIGNAL_COMPLETE -> DONE. Lock
// contention and smart skips divert to SKIPPED; any step may divert to
// FAILED. The controller owns everything around the stage's work: the
// lock, the dependency gate with retries, the change-hash skip, the
// heartbeat, the run record, the completion signal, and alerting.
package lifecycle

import (
	"github.com/hoopline/gatekeeper/types"
)

// State is one step of the run state machine.
type State string

// Run states in transition order, plus the two diversion terminals.
const (
	StateInit            State = "INIT"
	StateLockAcquire     State = "LOCK_ACQUIRE"
	StateDependencyCheck State = "DEPENDENCY_CHECK"
	StateExtract         State = "EXTRACT"
	StateValidate        State = "VALIDATE"
	StateCompute         State = "COMPUTE"
	StatePersist         State = "PERSIST"
	StateSignalComplete  State = "SIGNAL_COMPLETE"
	StateDone            State = "DONE"
	StateSkipped         State = "SKIPPED"
	StateFailed          State = "FAILED"
)

// Outcome is the explicit result of a run: a tagged status instead of an
// error used for control flow. Errors out of Controller.Run are reserved
// for faults in the controller itself.
type Outcome struct {
	// RunID identifies the attempt.
	RunID string
	// Status is the terminal run status.
	Status types.RunStatus
	// FinalState is the state the run terminated in.
	FinalState State
	// Category is set when Status is failed.
	Category types.FailureCategory
	// Records is the number of output rows persisted.
	Records int64
	// Reason is a short human-readable account of a skip or failure.
	Reason string
}

// Skipped reports whether the run ended without doing work.
func (o Outcome) Skipped() bool { return o.Status == types.RunSkipped }
