package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// Run is the mutable per-attempt state handed to each stage phase. It is
// constructed fresh at run start; nothing in it survives across runs.
type Run struct {
	// Stage is the stage name.
	Stage string
	// RunID identifies the attempt.
	RunID string
	// AsOf is the processing date.
	AsOf time.Time
	// Backfill marks a historical-reprocessing run.
	Backfill bool

	// Depends is the dependency decision, set after DEPENDENCY_CHECK.
	Depends types.SoftDependencyCheckResult

	// SourceHashes is set by Extract: content hash per source prefix.
	SourceHashes map[string]string
	// CoveragePct is set by Validate: the stage's own output coverage.
	CoveragePct float64
	// EntitiesChecked is the number of entities Validate measured.
	EntitiesChecked int
	// Partial marks a run that persisted some but not all entities.
	Partial bool
	// OutputLocation names where Persist wrote, for the signal.
	OutputLocation string
	// Failures collects entity-level shortfalls for the failure ledger.
	Failures []types.FailureRecord
	// Metadata is attached to the completion signal.
	Metadata map[string]string
}

// Stage is the work surface a pipeline stage implements. The controller
// calls the phases in order; each phase may read and write the Run.
type Stage interface {
	// Name is the stage's registry name.
	Name() string
	// Upstreams names the upstream stages to gate on. Nil means all
	// rules registered for this stage.
	Upstreams() []string
	// Extract pulls source data and fills Run.SourceHashes.
	Extract(ctx context.Context, run *Run) error
	// Validate checks completeness of the extracted data and fills
	// Run.CoveragePct and Run.Failures.
	Validate(ctx context.Context, run *Run) error
	// Compute produces the stage's output.
	Compute(ctx context.Context, run *Run) error
	// Persist writes the output and returns the records written.
	Persist(ctx context.Context, run *Run) (int64, error)
}

// StubStage is a scriptable Stage for tests. Each phase func may be nil,
// in which case the phase succeeds and does nothing.
type StubStage struct {
	StageName     string
	UpstreamNames []string

	ExtractFn  func(ctx context.Context, run *Run) error
	ValidateFn func(ctx context.Context, run *Run) error
	ComputeFn  func(ctx context.Context, run *Run) error
	PersistFn  func(ctx context.Context, run *Run) (int64, error)

	mu     sync.Mutex
	phases []string
}

// Name implements Stage.
func (s *StubStage) Name() string { return s.StageName }

// Upstreams implements Stage.
func (s *StubStage) Upstreams() []string { return s.UpstreamNames }

// Extract implements Stage.
func (s *StubStage) Extract(ctx context.Context, run *Run) error {
	s.record("extract")
	if s.ExtractFn != nil {
		return s.ExtractFn(ctx, run)
	}
	return nil
}

// Validate implements Stage.
func (s *StubStage) Validate(ctx context.Context, run *Run) error {
	s.record("validate")
	if s.ValidateFn != nil {
		return s.ValidateFn(ctx, run)
	}
	return nil
}

// Compute implements Stage.
func (s *StubStage) Compute(ctx context.Context, run *Run) error {
	s.record("compute")
	if s.ComputeFn != nil {
		return s.ComputeFn(ctx, run)
	}
	return nil
}

// Persist implements Stage.
func (s *StubStage) Persist(ctx context.Context, run *Run) (int64, error) {
	s.record("persist")
	if s.PersistFn != nil {
		return s.PersistFn(ctx, run)
	}
	return 0, nil
}

func (s *StubStage) record(phase string) {
	s.mu.Lock()
	s.phases = append(s.phases, phase)
	s.mu.Unlock()
}

// Phases returns the phases invoked so far, in order.
func (s *StubStage) Phases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.phases...)
}

var _ Stage = (*StubStage)(nil)
