package types

import (
	"errors"
	"fmt"
)

// FallbackAction is what a downstream stage does when a soft dependency
// falls below its minimum coverage.
type FallbackAction string

// Fallback action constants.
const (
	// FallbackSkip skips the run for the affected date.
	FallbackSkip FallbackAction = "skip"
	// FallbackWarn proceeds in degraded mode with a warning.
	FallbackWarn FallbackAction = "warn"
	// FallbackUseSource substitutes a named fallback source table.
	FallbackUseSource FallbackAction = "useFallbackSource"
)

// DependencyRule declares one upstream requirement of a downstream stage.
// Rules are immutable, defined per downstream stage at configuration time.
type DependencyRule struct {
	// UpstreamStage is the stage whose output this rule guards.
	UpstreamStage string
	// IsHard marks the dependency as blocking: below MinCoverage the
	// downstream run fails rather than degrading.
	IsHard bool
	// MinCoverage is the minimum acceptable coverage fraction in [0,1].
	MinCoverage float64
	// FallbackAction applies when a soft dependency misses MinCoverage.
	FallbackAction FallbackAction
	// FallbackSource is the substitute table for FallbackUseSource.
	FallbackSource string
}

// Validate checks rule consistency at registry construction time.
func (r DependencyRule) Validate() error {
	if r.UpstreamStage == "" {
		return errors.New("dependency rule requires an upstream stage name")
	}
	if r.MinCoverage < 0 || r.MinCoverage > 1 {
		return fmt.Errorf("min coverage must be in [0,1], got %v", r.MinCoverage)
	}
	if r.FallbackAction == FallbackUseSource && r.FallbackSource == "" {
		return fmt.Errorf("rule for %s uses a fallback source but names none", r.UpstreamStage)
	}
	return nil
}

// UpstreamCoverage is the observed coverage for one upstream stage during a
// dependency check, with the two-tier exists/sufficient distinction
// preserved: Exists reports any data at all, Sufficient reports the
// configured threshold.
type UpstreamCoverage struct {
	// Stage is the upstream stage name.
	Stage string
	// Coverage is the observed coverage fraction in [0,1].
	Coverage float64
	// Exists holds when the upstream produced any data for the date.
	Exists bool
	// Sufficient holds when Coverage meets the rule's minimum.
	Sufficient bool
	// FromRunLedger is true when coverage came from a run record rather
	// than a direct probe of the upstream output table.
	FromRunLedger bool
}

// SoftDependencyCheckResult aggregates dependency evaluation for one run.
// It drives the lifecycle controller's branch: proceed, proceed degraded,
// or fail.
type SoftDependencyCheckResult struct {
	// ShouldProceed is false iff at least one hard dependency failed.
	ShouldProceed bool
	// Degraded is true iff at least one soft dependency proceeded below
	// full coverage.
	Degraded bool
	// CoveragePerUpstream maps upstream stage name to observed coverage.
	CoveragePerUpstream map[string]UpstreamCoverage
	// Warnings collects degraded-mode notes, one per soft shortfall.
	Warnings []string
	// Errors collects hard-dependency failures.
	Errors []string
}
