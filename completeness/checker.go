// Package completeness implements schedule-based completeness checking.
//
// The checker answers one question in several forms: for a given entity and
// date, does the upstream source hold as many records as the authoritative
// schedule says it should? Expected counts always come from the schedule;
// actual counts come from a single batched aggregate per check, not one
// query per entity.
package completeness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/schedule"
	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

// DefaultBootstrapDays is how long after season start the pipeline is
// considered to be ramping up naturally.
const DefaultBootstrapDays = 30

// WindowType selects how a lookback window is measured.
type WindowType string

// Window type constants.
const (
	// WindowGames counts scheduled games: season-to-date, or the most
	// recent N when a lookback is given.
	WindowGames WindowType = "games"
	// WindowDays counts schedule entries in the trailing N calendar days.
	WindowDays WindowType = "days"
)

// Request parameterizes one completeness check over a batch of entities.
type Request struct {
	// EntityIDs is the batch under check.
	EntityIDs []string
	// EntityType is PLAYER or TEAM; players inherit their team's schedule.
	EntityType types.EntityType
	// AsOf is the processing date.
	AsOf time.Time
	// Source is the upstream table holding the actual records.
	Source warehouse.Source
	// Lookback bounds the window: most recent N games, or trailing N
	// days. Zero means season-to-date (games windows only).
	Lookback int
	// WindowType selects games or days.
	WindowType WindowType
	// SeasonStart overrides schedule-resolved season start when nonzero.
	SeasonStart time.Time
}

// Checker computes expected-vs-actual completeness.
type Checker struct {
	store  warehouse.Store
	sched  schedule.Provider
	runs   ledger.RunLedger
	logger *log.Logger

	// now is injectable for age computation in tests.
	now func() time.Time
}

// NewChecker creates a completeness checker.
func NewChecker(store warehouse.Store, sched schedule.Provider, runs ledger.RunLedger, logger *log.Logger) *Checker {
	if logger == nil {
		logger = log.Nop()
	}
	return &Checker{store: store, sched: sched, runs: runs, logger: logger, now: time.Now}
}

// WithNow overrides the clock. For tests.
func (c *Checker) WithNow(now func() time.Time) *Checker {
	c.now = now
	return c
}

// CheckCompleteness computes a CoverageResult per entity.
//
// Expected counts are derived from the schedule (players via their
// most-recently-observed team); actual counts come from one batched
// aggregate query over the source. Entities absent from the aggregate get
// actual=0; entities with no schedule get expected=0.
func (c *Checker) CheckCompleteness(ctx context.Context, req Request) (map[string]types.CoverageResult, error) {
	if len(req.EntityIDs) == 0 {
		return map[string]types.CoverageResult{}, nil
	}

	seasonStart, err := c.resolveSeasonStart(ctx, req)
	if err != nil {
		return nil, err
	}

	expected := make(map[string]int, len(req.EntityIDs))
	windowStart := types.Midnight(req.AsOf)
	for _, id := range req.EntityIDs {
		dates, derr := c.ExpectedGameDates(ctx, id, req.EntityType, req.AsOf, req.Lookback, req.WindowType, seasonStart)
		if derr != nil {
			if errors.Is(derr, schedule.ErrNoTeam) {
				c.logger.Warn("no roster observation for entity", map[string]any{"entity": id})
				expected[id] = 0
				continue
			}
			return nil, derr
		}
		expected[id] = len(dates)
		if len(dates) > 0 && dates[0].Before(windowStart) {
			windowStart = dates[0]
		}
	}

	rows, err := c.store.Aggregate(ctx, warehouse.AggregateSpec{
		Source:    req.Source,
		Start:     windowStart,
		End:       req.AsOf,
		EntityIDs: req.EntityIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("completeness: actual counts from %s: %w", req.Source.Table, err)
	}

	actual := make(map[string]warehouse.AggregateRow, len(rows))
	for _, row := range rows {
		actual[row.EntityID] = row
	}

	now := c.now()
	out := make(map[string]types.CoverageResult, len(req.EntityIDs))
	for _, id := range req.EntityIDs {
		row := actual[id] // zero row when absent: actual=0
		age := -1.0
		if !row.MaxUpdatedAt.IsZero() {
			age = now.Sub(row.MaxUpdatedAt).Hours()
		}
		out[id] = types.NewCoverageResult(id, expected[id], int(row.Count), age)
	}
	return out, nil
}

// ExpectedGameDates derives the schedule dates an entity is expected to
// have records for. Team entities query the schedule directly; player
// entities inherit their most-recently-observed team's schedule and
// propagate schedule.ErrNoTeam when no roster observation exists.
func (c *Checker) ExpectedGameDates(ctx context.Context, entityID string, entityType types.EntityType, asOf time.Time, lookback int, windowType WindowType, seasonStart time.Time) ([]time.Time, error) {
	teamID := entityID
	if entityType == types.EntityPlayer {
		var err error
		teamID, err = c.sched.PlayerTeam(ctx, entityID, asOf)
		if err != nil {
			return nil, err
		}
	}

	switch windowType {
	case WindowDays:
		start := types.Midnight(asOf).AddDate(0, 0, -lookback)
		return c.sched.TeamGameDates(ctx, teamID, start, asOf)
	case WindowGames:
		if lookback > 0 {
			return c.sched.LastNTeamGameDates(ctx, teamID, asOf, lookback)
		}
		return c.sched.TeamGameDates(ctx, teamID, seasonStart, asOf)
	default:
		return nil, fmt.Errorf("completeness: unknown window type %q", windowType)
	}
}

func (c *Checker) resolveSeasonStart(ctx context.Context, req Request) (time.Time, error) {
	if !req.SeasonStart.IsZero() {
		return types.Midnight(req.SeasonStart), nil
	}
	if req.WindowType == WindowDays || req.Lookback > 0 {
		// Season start is irrelevant for bounded windows.
		return time.Time{}, nil
	}
	season, err := c.sched.SeasonFor(ctx, req.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("completeness: resolve season: %w", err)
	}
	return season.Start, nil
}

// IsBootstrapMode reports whether asOf falls within the natural ramp-up
// period after season start. Completeness alarms are suppressed during
// bootstrap rather than treated as failures.
func IsBootstrapMode(asOf, seasonStart time.Time, bootstrapDays int) bool {
	if bootstrapDays <= 0 {
		bootstrapDays = DefaultBootstrapDays
	}
	elapsed := types.DaysSince(seasonStart, asOf)
	return elapsed >= 0 && elapsed < bootstrapDays
}

// IsSeasonBoundary reports whether asOf falls in the first or last month of
// its season. Schedule gaps around the boundaries produce false "days
// missing" alarms otherwise.
func (c *Checker) IsSeasonBoundary(ctx context.Context, asOf time.Time) (bool, error) {
	season, err := c.sched.SeasonFor(ctx, asOf)
	if err != nil {
		return false, fmt.Errorf("completeness: season boundary: %w", err)
	}
	if !season.Contains(types.Midnight(asOf)) {
		// Between seasons counts as a boundary.
		return true, nil
	}
	day := types.Midnight(asOf)
	return day.Before(season.Start.AddDate(0, 1, 0)) || day.After(season.End.AddDate(0, -1, 0)), nil
}

// CheckUpstreamProcessorStatus looks up the most recent run record for an
// upstream stage and date and reports whether it is safe to build on.
func (c *Checker) CheckUpstreamProcessorStatus(ctx context.Context, stageName string, asOf time.Time) (types.UpstreamStatus, error) {
	rec, err := c.runs.Latest(ctx, stageName, asOf)
	if err != nil {
		return types.UpstreamStatus{}, fmt.Errorf("completeness: upstream status for %s: %w", stageName, err)
	}
	if rec == nil {
		return types.UpstreamStatus{
			Succeeded:     false,
			SafeToProcess: false,
			ErrorMessage:  fmt.Sprintf("no run record for %s on %s", stageName, types.FormatDay(asOf)),
		}, nil
	}

	status := types.UpstreamStatus{Status: rec.Status}
	switch rec.Status {
	case types.RunSuccess:
		status.Succeeded = true
		status.SafeToProcess = true
	case types.RunPartial:
		// Partial output is consumable; downstream coverage checks weigh
		// how much of it arrived.
		status.SafeToProcess = true
	default:
		status.ErrorMessage = fmt.Sprintf("upstream %s finished with status %s", stageName, rec.Status)
	}
	return status, nil
}

// CalculateBackfillProgress grades a long-running historical backfill
// against the expected completeness ramp: day 10 of the season should see
// 30%, day 20 should see 80%, day 30 should see 95%. This is a pacing
// check, distinct from per-date completeness.
func CalculateBackfillProgress(asOf, seasonStart time.Time, avgCompleteness float64) types.AlertLevel {
	elapsed := types.DaysSince(seasonStart, asOf)

	var expected float64
	switch {
	case elapsed < 10:
		expected = 0
	case elapsed < 20:
		expected = 30
	case elapsed < 30:
		expected = 80
	default:
		expected = 95
	}

	lag := expected - avgCompleteness
	switch {
	case lag <= 0:
		return types.AlertOK
	case lag <= 10:
		return types.AlertInfo
	case lag <= 30:
		return types.AlertWarning
	default:
		return types.AlertCritical
	}
}
