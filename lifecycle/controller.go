package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hoopline/gatekeeper/adapter"
	"github.com/hoopline/gatekeeper/classify"
	"github.com/hoopline/gatekeeper/depend"
	"github.com/hoopline/gatekeeper/hashtrack"
	"github.com/hoopline/gatekeeper/heartbeat"
	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/locker"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/metrics"
	"github.com/hoopline/gatekeeper/notify"
	"github.com/hoopline/gatekeeper/retry"
	"github.com/hoopline/gatekeeper/snapshot"
	"github.com/hoopline/gatekeeper/types"
)

// Config wires a Controller's collaborators. Locks and Runs are
// required; everything else degrades gracefully when absent.
type Config struct {
	// Locks is the (stage, date) mutual-exclusion service (required).
	Locks locker.Locker
	// Runs is the run ledger (required).
	Runs ledger.RunLedger
	// Failures is the entity-failure ledger (optional).
	Failures ledger.FailureLedger
	// Depends gates runs on upstream coverage (optional).
	Depends *depend.Resolver
	// Hashes enables the change-hash smart skip (optional).
	Hashes *hashtrack.Tracker
	// Signals publishes stage-completion events (optional).
	Signals adapter.Adapter
	// Alerts delivers failure notifications (optional).
	Alerts notify.Notifier
	// Archive persists run reports (optional).
	Archive snapshot.Publisher
	// Metrics collects run counters (optional, nil-safe).
	Metrics *metrics.Collector
	// Retry is the dependency-check backoff policy. Zero value uses the
	// default linear schedule.
	Retry retry.Policy
	// StaleAfter is the lock staleness window (default 10 minutes).
	StaleAfter time.Duration
	// HeartbeatInterval overrides the beacon interval (default derived
	// from the staleness window).
	HeartbeatInterval time.Duration
	// NoDataExpected, when set, is consulted after dependency retries
	// exhaust: a true result turns the failure into a no-op success.
	// Typically bound to the completeness checker's bootstrap test.
	NoDataExpected func(ctx context.Context, asOf time.Time) bool
	// Logger is the run logger (optional).
	Logger *log.Logger
}

// RunOptions are the per-invocation mode flags.
type RunOptions struct {
	// Backfill suppresses alerts and the downstream signal and bypasses
	// the dependency gate, for historical reprocessing.
	Backfill bool
	// SkipDependencyCheck bypasses the dependency gate only.
	SkipDependencyCheck bool
	// CheckAllSources makes the smart skip require every source
	// unchanged, not just the primary.
	CheckAllSources bool
	// Overrides replaces rule minimum coverage per upstream name.
	Overrides map[string]float64
}

// Controller executes stage runs. Collaborators are explicit: the
// controller calls each one by name, and a stage only implements its own
// extract/validate/compute/persist work.
type Controller struct {
	cfg Config
	now func() time.Time
}

// NewController validates the wiring and creates a controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Locks == nil {
		return nil, errors.New("lifecycle: locker is required")
	}
	if cfg.Runs == nil {
		return nil, errors.New("lifecycle: run ledger is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = types.DefaultLockStaleAfter
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = retry.NewPolicy()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.StaleAfter / 3
	}
	return &Controller{cfg: cfg, now: time.Now}, nil
}

// WithNow overrides the clock. For tests.
func (c *Controller) WithNow(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Run drives one stage attempt through the state machine. The returned
// Outcome is the run's result; the error is reserved for controller
// faults (a failed run is a valid Outcome, not an error).
func (c *Controller) Run(ctx context.Context, stage Stage, asOf time.Time, opts RunOptions) (Outcome, error) {
	run := &Run{
		Stage:    stage.Name(),
		RunID:    uuid.NewString(),
		AsOf:     types.Midnight(asOf),
		Backfill: opts.Backfill,
		Metadata: make(map[string]string),
	}
	started := c.now()
	c.cfg.Metrics.IncRunStarted()
	c.logState(run, StateInit, nil)

	// LOCK_ACQUIRE
	c.logState(run, StateLockAcquire, nil)
	key := types.LockKey(run.Stage, run.AsOf)
	current, acquired, err := c.cfg.Locks.TryAcquire(ctx, key, run.RunID, c.cfg.StaleAfter)
	if err != nil {
		return c.fail(ctx, run, StateLockAcquire, started, err, opts), nil
	}
	if !acquired {
		reason := "lock held"
		if current != nil {
			reason = fmt.Sprintf("lock held by %s", current.HolderID)
		}
		// Deliberately skipped, not failed: concurrent invocations for
		// the same key must not turn into retry storms.
		return c.skip(ctx, run, StateLockAcquire, started, reason), nil
	}

	// Heartbeat covers every phase from here on: the dependency gate's
	// retry backoff alone can outlast the staleness window, and a stale
	// lock mid-run would let a second invocation reclaim it.
	beacon := heartbeat.New(c.cfg.Locks, key, run.RunID, c.cfg.StaleAfter, c.cfg.Logger).
		WithInterval(c.cfg.HeartbeatInterval)
	beacon.Start(ctx)
	defer func() {
		// Lock release and heartbeat stop run regardless of how the
		// run terminated.
		beacon.Stop()
		releaseCtx := context.WithoutCancel(ctx)
		if err := c.cfg.Locks.Release(releaseCtx, key, run.RunID); err != nil {
			c.cfg.Logger.Warn("lock release failed", map[string]any{
				"stage": run.Stage, "run_id": run.RunID, "error": err.Error(),
			})
		}
	}()

	// DEPENDENCY_CHECK
	c.logState(run, StateDependencyCheck, nil)
	if c.cfg.Depends != nil && !opts.SkipDependencyCheck && !opts.Backfill {
		outcome, done := c.checkDependencies(ctx, stage, run, started, opts)
		if done {
			return outcome, nil
		}
	}

	// EXTRACT
	c.logState(run, StateExtract, nil)
	if err := stage.Extract(ctx, run); err != nil {
		return c.fail(ctx, run, StateExtract, started, err, opts), nil
	}

	// Smart skip: unchanged sources mean nothing to recompute.
	if c.cfg.Hashes != nil && len(run.SourceHashes) > 0 {
		entityKey := hashtrack.EntityKey(run.Stage, types.FormatDay(run.AsOf), "")
		if skip, reason := c.cfg.Hashes.ShouldSkip(ctx, entityKey, run.SourceHashes, opts.CheckAllSources); skip {
			c.cfg.Metrics.IncHashSkip()
			return c.skip(ctx, run, StateExtract, started, reason), nil
		}
	}

	// VALIDATE
	c.logState(run, StateValidate, nil)
	if err := stage.Validate(ctx, run); err != nil {
		return c.fail(ctx, run, StateValidate, started, err, opts), nil
	}

	// COMPUTE
	c.logState(run, StateCompute, nil)
	if err := stage.Compute(ctx, run); err != nil {
		return c.fail(ctx, run, StateCompute, started, err, opts), nil
	}

	// PERSIST
	c.logState(run, StatePersist, nil)
	records, err := stage.Persist(ctx, run)
	if err != nil {
		return c.fail(ctx, run, StatePersist, started, err, opts), nil
	}

	if c.cfg.Failures != nil {
		// Delete-then-insert keeps one failure row per entity on reruns.
		if err := c.cfg.Failures.Replace(ctx, run.Stage, run.AsOf, run.Failures); err != nil {
			c.cfg.Logger.Warn("failure ledger write failed", map[string]any{
				"stage": run.Stage, "run_id": run.RunID, "error": err.Error(),
			})
		}
	}
	if c.cfg.Hashes != nil && len(run.SourceHashes) > 0 {
		entityKey := hashtrack.EntityKey(run.Stage, types.FormatDay(run.AsOf), "")
		c.cfg.Hashes.Record(ctx, entityKey, run.SourceHashes)
	}

	status := types.RunSuccess
	outcome := adapter.OutcomeSuccess
	if run.Partial {
		status = types.RunPartial
		outcome = adapter.OutcomePartial
	}

	// SIGNAL_COMPLETE
	c.logState(run, StateSignalComplete, nil)
	if !opts.Backfill {
		c.publishSignal(ctx, run, outcome, records, started, "")
	}

	// DONE
	if run.EntitiesChecked > 0 {
		checked := int64(run.EntitiesChecked)
		incomplete := int64(len(run.Failures))
		c.cfg.Metrics.AbsorbCoverage(checked, checked-incomplete, incomplete, run.CoveragePct)
	}
	rec := c.runRecord(run, status, started, records, "")
	c.appendRun(ctx, rec)
	c.cfg.Metrics.IncRunSucceeded()
	c.archive(ctx, rec, run)
	c.logState(run, StateDone, map[string]any{"records": records, "status": string(status)})

	return Outcome{
		RunID:      run.RunID,
		Status:     status,
		FinalState: StateDone,
		Records:    records,
	}, nil
}

// checkDependencies runs the dependency gate with linear-backoff retries.
// The bool reports whether the run terminated here.
func (c *Controller) checkDependencies(ctx context.Context, stage Stage, run *Run, started time.Time, opts RunOptions) (Outcome, bool) {
	policy := c.cfg.Retry
	policy.RetryIf = func(err error) bool { return errors.Is(err, depend.ErrUnsatisfied) }

	attempt := 0
	err := policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.cfg.Metrics.IncDependencyRetry()
		}
		result, err := c.cfg.Depends.Require(ctx, run.Stage, run.AsOf, stage.Upstreams(), opts.Overrides)
		run.Depends = result
		return err
	})
	if err == nil {
		return Outcome{}, false
	}

	if errors.Is(err, depend.ErrUnsatisfied) {
		c.cfg.Metrics.IncDependencyFailure()
		if c.cfg.NoDataExpected != nil && c.cfg.NoDataExpected(ctx, run.AsOf) {
			// Early season: the upstream has nothing yet and that is
			// expected. A no-op success, not a failure.
			rec := c.runRecord(run, types.RunSuccess, started, 0, "")
			rec.DependencySummary = "no data expected"
			c.appendRun(ctx, rec)
			c.cfg.Metrics.IncRunSucceeded()
			if !opts.Backfill {
				c.publishSignal(ctx, run, adapter.OutcomeNoData, 0, started, "")
			}
			return Outcome{
				RunID:      run.RunID,
				Status:     types.RunSuccess,
				FinalState: StateDone,
				Reason:     "no data expected",
			}, true
		}
		return c.fail(ctx, run, StateDependencyCheck, started, err, opts), true
	}
	return c.fail(ctx, run, StateDependencyCheck, started, err, opts), true
}

// skip terminates a run in SKIPPED: a run record is still written, but
// no alert fires and no signal publishes.
func (c *Controller) skip(ctx context.Context, run *Run, from State, started time.Time, reason string) Outcome {
	rec := c.runRecord(run, types.RunSkipped, started, 0, "")
	rec.DependencySummary = reason
	c.appendRun(ctx, rec)
	c.cfg.Metrics.IncRunSkipped()
	c.logState(run, StateSkipped, map[string]any{"from": string(from), "reason": reason})
	return Outcome{
		RunID:      run.RunID,
		Status:     types.RunSkipped,
		FinalState: StateSkipped,
		Reason:     reason,
	}
}

// fail terminates a run in FAILED: categorize, record, alert per policy.
func (c *Controller) fail(ctx context.Context, run *Run, from State, started time.Time, cause error, opts RunOptions) Outcome {
	category := classify.Categorize(cause)
	rec := c.runRecord(run, types.RunFailed, started, 0, category)
	c.appendRun(ctx, rec)
	c.cfg.Metrics.IncRunFailed()
	c.cfg.Logger.Error("run failed", map[string]any{
		"stage":    run.Stage,
		"run_id":   run.RunID,
		"as_of":    types.FormatDay(run.AsOf),
		"state":    string(from),
		"category": string(category),
		"error":    cause.Error(),
	})

	if !opts.Backfill {
		c.publishSignal(ctx, run, adapter.OutcomeFailed, 0, started, cause.Error())
	}

	switch {
	case opts.Backfill || !category.Alertable():
		c.cfg.Metrics.IncAlertSuppressed()
	case c.cfg.Alerts != nil:
		alert := notify.Alert{
			Stage:    run.Stage,
			RunID:    run.RunID,
			AsOfDate: types.FormatDay(run.AsOf),
			Category: category,
			Message:  cause.Error(),
			SentAt:   c.now().UTC(),
		}
		if err := c.cfg.Alerts.Notify(ctx, alert); err != nil {
			c.cfg.Logger.Warn("alert delivery failed", map[string]any{
				"stage": run.Stage, "run_id": run.RunID, "error": err.Error(),
			})
		} else {
			c.cfg.Metrics.IncAlertSent()
		}
	}

	return Outcome{
		RunID:      run.RunID,
		Status:     types.RunFailed,
		FinalState: StateFailed,
		Category:   category,
		Reason:     cause.Error(),
	}
}

func (c *Controller) runRecord(run *Run, status types.RunStatus, started time.Time, records int64, category types.FailureCategory) *types.RunRecord {
	summary := ""
	if len(run.Depends.CoveragePerUpstream) > 0 {
		stages := make([]string, 0, len(run.Depends.CoveragePerUpstream))
		for stage := range run.Depends.CoveragePerUpstream {
			stages = append(stages, stage)
		}
		// Stable ordering keeps the persisted summary comparable across
		// reruns of the same stage.
		sort.Strings(stages)
		for _, stage := range stages {
			if summary != "" {
				summary += "; "
			}
			summary += fmt.Sprintf("%s=%.1f%%", stage, run.Depends.CoveragePerUpstream[stage].Coverage*100)
		}
	}
	return &types.RunRecord{
		StageName:         run.Stage,
		RunID:             run.RunID,
		AsOf:              run.AsOf,
		Status:            status,
		StartedAt:         started.UTC(),
		DurationSeconds:   c.now().Sub(started).Seconds(),
		RecordsProcessed:  records,
		CoveragePct:       run.CoveragePct,
		DependencySummary: summary,
		FailureCategory:   category,
		Backfill:          run.Backfill,
	}
}

// appendRun writes the run record. Every run writes exactly one record;
// a ledger outage is logged rather than overriding the run's outcome.
func (c *Controller) appendRun(ctx context.Context, rec *types.RunRecord) {
	if err := c.cfg.Runs.Append(context.WithoutCancel(ctx), rec); err != nil {
		c.cfg.Logger.Error("run ledger append failed", map[string]any{
			"stage": rec.StageName, "run_id": rec.RunID, "error": err.Error(),
		})
	}
}

// publishSignal emits the stage-completion event. Publish failures are
// logged and counted, never raised.
func (c *Controller) publishSignal(ctx context.Context, run *Run, outcome string, records int64, started time.Time, detail string) {
	if c.cfg.Signals == nil {
		return
	}
	event := &adapter.StageCompletedEvent{
		ContractVersion: adapter.SignalVersion,
		EventType:       "stage_completed",
		StageName:       run.Stage,
		RunID:           run.RunID,
		AsOfDate:        types.FormatDay(run.AsOf),
		OutputLocation:  run.OutputLocation,
		Status:          outcome,
		RecordCount:     records,
		DurationSeconds: c.now().Sub(started).Seconds(),
		ErrorMessage:    detail,
		Metadata:        run.Metadata,
	}
	if err := c.cfg.Signals.Publish(ctx, event); err != nil {
		c.cfg.Metrics.IncSignalFailure()
		c.cfg.Logger.Warn("completion signal failed", map[string]any{
			"stage": run.Stage, "run_id": run.RunID, "error": err.Error(),
		})
		return
	}
	c.cfg.Metrics.IncSignalPublished()
}

// archive publishes the run report snapshot, best effort.
func (c *Controller) archive(ctx context.Context, rec *types.RunRecord, run *Run) {
	if c.cfg.Archive == nil {
		return
	}
	report := snapshot.Report{
		Run:       *rec,
		Depends:   run.Depends,
		Failures:  run.Failures,
		WrittenAt: c.now().UTC(),
	}
	if err := c.cfg.Archive.Publish(ctx, report); err != nil {
		c.cfg.Logger.Warn("snapshot publish failed", map[string]any{
			"stage": run.Stage, "run_id": run.RunID, "error": err.Error(),
		})
	}
}

func (c *Controller) logState(run *Run, state State, extra map[string]any) {
	fields := map[string]any{
		"stage":  run.Stage,
		"run_id": run.RunID,
		"as_of":  types.FormatDay(run.AsOf),
		"state":  string(state),
	}
	for k, v := range extra {
		fields[k] = v
	}
	c.cfg.Logger.Debug("state transition", fields)
}
