// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single run. It is a leaf
// package with no internal dependencies. Coverage gauges are absorbed
// from the completeness check at run completion rather than recorded
// live, avoiding double-counting across retries.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsSucceeded int64
	RunsSkipped   int64
	RunsFailed    int64

	// Dependency checking
	DependencyRetries  int64
	DependencyFailures int64

	// Smart skip
	HashSkips int64

	// Coverage (absorbed from the completeness check at run completion)
	EntitiesChecked    int64
	EntitiesComplete   int64
	EntitiesIncomplete int64
	AvgCoveragePct     float64

	// Signals and alerting
	SignalsPublished int64
	SignalFailures   int64
	AlertsSent       int64
	AlertsSuppressed int64

	// Dimensions (informational, set at construction)
	Stage string
	RunID string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	// Run lifecycle
	runsStarted   int64
	runsSucceeded int64
	runsSkipped   int64
	runsFailed    int64

	// Dependency checking
	dependencyRetries  int64
	dependencyFailures int64

	// Smart skip
	hashSkips int64

	// Coverage (set once via AbsorbCoverage)
	entitiesChecked    int64
	entitiesComplete   int64
	entitiesIncomplete int64
	avgCoveragePct     float64

	// Signals and alerting
	signalsPublished int64
	signalFailures   int64
	alertsSent       int64
	alertsSuppressed int64

	// Dimensions
	stage string
	runID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(stage, runID string) *Collector {
	return &Collector{stage: stage, runID: runID}
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsStarted++
	c.mu.Unlock()
}

// IncRunSucceeded records a run that reached DONE.
func (c *Collector) IncRunSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsSucceeded++
	c.mu.Unlock()
}

// IncRunSkipped records a skipped run (lock contention or smart skip).
func (c *Collector) IncRunSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsSkipped++
	c.mu.Unlock()
}

// IncRunFailed records a failed run.
func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsFailed++
	c.mu.Unlock()
}

// --- Dependency checking ---

// IncDependencyRetry records one backoff-and-retry of the dependency check.
func (c *Collector) IncDependencyRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.dependencyRetries++
	c.mu.Unlock()
}

// IncDependencyFailure records a hard-dependency failure after retries.
func (c *Collector) IncDependencyFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.dependencyFailures++
	c.mu.Unlock()
}

// --- Smart skip ---

// IncHashSkip records a run short-circuited by the change-hash tracker.
func (c *Collector) IncHashSkip() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.hashSkips++
	c.mu.Unlock()
}

// --- Signals and alerting ---

// IncSignalPublished records a delivered stage-completion signal.
func (c *Collector) IncSignalPublished() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.signalsPublished++
	c.mu.Unlock()
}

// IncSignalFailure records a failed signal publish. Non-fatal by policy;
// this counter is how the failure stays visible.
func (c *Collector) IncSignalFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.signalFailures++
	c.mu.Unlock()
}

// IncAlertSent records a delivered operator alert.
func (c *Collector) IncAlertSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.alertsSent++
	c.mu.Unlock()
}

// IncAlertSuppressed records an alert withheld by policy (backfill mode
// or a non-alertable category).
func (c *Collector) IncAlertSuppressed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.alertsSuppressed++
	c.mu.Unlock()
}

// --- Coverage ---

// AbsorbCoverage copies coverage gauges from the completeness check into
// the collector. Called once after run completion with the final figures.
func (c *Collector) AbsorbCoverage(checked, complete, incomplete int64, avgPct float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entitiesChecked = checked
	c.entitiesComplete = complete
	c.entitiesIncomplete = incomplete
	c.avgCoveragePct = avgPct
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		RunsStarted:   c.runsStarted,
		RunsSucceeded: c.runsSucceeded,
		RunsSkipped:   c.runsSkipped,
		RunsFailed:    c.runsFailed,

		DependencyRetries:  c.dependencyRetries,
		DependencyFailures: c.dependencyFailures,

		HashSkips: c.hashSkips,

		EntitiesChecked:    c.entitiesChecked,
		EntitiesComplete:   c.entitiesComplete,
		EntitiesIncomplete: c.entitiesIncomplete,
		AvgCoveragePct:     c.avgCoveragePct,

		SignalsPublished: c.signalsPublished,
		SignalFailures:   c.signalFailures,
		AlertsSent:       c.alertsSent,
		AlertsSuppressed: c.alertsSuppressed,

		Stage: c.stage,
		RunID: c.runID,
	}
}
