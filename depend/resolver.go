package depend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

// ErrUnsatisfied marks a hard-dependency failure. The lifecycle
// controller's retry loop matches on it to distinguish "upstream not
// ready yet" from infrastructure errors.
var ErrUnsatisfied = errors.New("depend: hard dependency unsatisfied")

// Resolver evaluates the registered rules of a stage against observed
// upstream coverage.
type Resolver struct {
	registry *Registry
	runs     ledger.RunLedger
	store    warehouse.Store
	logger   *log.Logger
	strict   bool
}

// NewResolver creates a resolver over the given registry and run ledger.
// The store is consulted only when an upstream has no run record for the
// date and a source binding exists for it.
func NewResolver(registry *Registry, runs ledger.RunLedger, store warehouse.Store, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Nop()
	}
	return &Resolver{registry: registry, runs: runs, store: store, logger: logger}
}

// WithStrict makes degraded outcomes blocking: an upstream that passes
// its minimum but sits below full coverage, or an optional dependency
// below its minimum, fails the check instead of producing a warning.
func (r *Resolver) WithStrict() *Resolver {
	r.strict = true
	return r
}

// CheckDependencies evaluates every rule of stageName for asOf.
//
// upstreams optionally restricts (and extends) the set of upstream stages
// checked: names without a registered rule get the fail-safe default of a
// hard dependency at 100% coverage. A nil upstreams means all registered
// rules. Overrides replace a rule's minimum coverage per upstream name.
func (r *Resolver) CheckDependencies(ctx context.Context, stageName string, asOf time.Time, upstreams []string, overrides map[string]float64) (types.SoftDependencyCheckResult, error) {
	var rules []types.DependencyRule
	if upstreams == nil {
		rules = r.registry.RulesFor(stageName)
	} else {
		for _, name := range upstreams {
			rules = append(rules, r.registry.RuleFor(stageName, name))
		}
	}

	result := types.SoftDependencyCheckResult{
		ShouldProceed:       true,
		CoveragePerUpstream: make(map[string]types.UpstreamCoverage, len(rules)),
	}

	for _, rule := range rules {
		minCoverage := rule.MinCoverage
		if override, ok := overrides[rule.UpstreamStage]; ok {
			minCoverage = override
		}

		coverage, err := r.observe(ctx, rule.UpstreamStage, asOf)
		if err != nil {
			return types.SoftDependencyCheckResult{}, fmt.Errorf("depend: coverage for %s: %w", rule.UpstreamStage, err)
		}
		coverage.Sufficient = coverage.Coverage >= minCoverage
		result.CoveragePerUpstream[rule.UpstreamStage] = coverage

		switch {
		case coverage.Sufficient && coverage.Coverage >= 1.0:
			// Fully covered, nothing to note.
		case coverage.Sufficient:
			result.Degraded = true
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s at %.1f%% coverage, above the %.1f%% minimum", rule.UpstreamStage, coverage.Coverage*100, minCoverage*100))
		case !rule.IsHard:
			result.Degraded = true
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("optional dependency %s below minimum: %.1f%% < %.1f%%", rule.UpstreamStage, coverage.Coverage*100, minCoverage*100))
		default:
			result.ShouldProceed = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("hard dependency %s below minimum: %.1f%% < %.1f%%", rule.UpstreamStage, coverage.Coverage*100, minCoverage*100))
		}
	}

	if r.strict && result.Degraded {
		result.ShouldProceed = false
		result.Errors = append(result.Errors, result.Warnings...)
		result.Warnings = nil
	}

	if !result.ShouldProceed {
		r.logger.Warn("dependency check failed", map[string]any{
			"stage":  stageName,
			"as_of":  types.FormatDay(asOf),
			"errors": result.Errors,
		})
	} else if result.Degraded {
		r.logger.Info("proceeding degraded", map[string]any{
			"stage":    stageName,
			"as_of":    types.FormatDay(asOf),
			"warnings": result.Warnings,
		})
	}
	return result, nil
}

// Require is CheckDependencies collapsed to an error: it returns
// ErrUnsatisfied when a hard dependency failed, so callers can retry
// with errors.Is.
func (r *Resolver) Require(ctx context.Context, stageName string, asOf time.Time, upstreams []string, overrides map[string]float64) (types.SoftDependencyCheckResult, error) {
	result, err := r.CheckDependencies(ctx, stageName, asOf, upstreams, overrides)
	if err != nil {
		return result, err
	}
	if !result.ShouldProceed {
		return result, fmt.Errorf("%w: %v", ErrUnsatisfied, result.Errors)
	}
	return result, nil
}

// observe obtains coverage for one upstream stage: the most recent
// completed run record when one exists, a direct existence probe of the
// upstream output table otherwise. Failed and skipped attempts are not
// consulted; the coverage they report describes data that never landed.
// No record and no probe binding reads as zero coverage.
func (r *Resolver) observe(ctx context.Context, upstream string, asOf time.Time) (types.UpstreamCoverage, error) {
	coverage := types.UpstreamCoverage{Stage: upstream}

	rec, err := r.runs.LatestCompleted(ctx, upstream, asOf)
	if err != nil {
		return coverage, err
	}
	if rec != nil {
		coverage.FromRunLedger = true
		coverage.Coverage = rec.CoveragePct / 100
		coverage.Exists = rec.RecordsProcessed > 0
		return coverage, nil
	}

	src, ok := r.registry.SourceFor(upstream)
	if !ok {
		r.logger.Warn("upstream has no completed run record and no source binding", map[string]any{
			"upstream": upstream,
			"as_of":    types.FormatDay(asOf),
		})
		return coverage, nil
	}
	count, err := r.store.RowCount(ctx, src, asOf)
	if err != nil {
		return coverage, err
	}
	if count > 0 {
		// A bare existence probe cannot measure partial coverage; any
		// data at all reads as fully covered.
		coverage.Exists = true
		coverage.Coverage = 1.0
	}
	return coverage, nil
}
