// Package window validates rolling-window completeness per entity.
//
// A rolling average over an incomplete window silently skews: 8 games of
// data divided over a 10-game window undercounts every rate stat. The
// validator decides, per (entity, window size), whether a window may be
// computed, computed with a degraded-quality flag, or must be skipped,
// after crediting games the entity legitimately did not play.
package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hoopline/gatekeeper/completeness"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/rawfeed"
	"github.com/hoopline/gatekeeper/schedule"
	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

// Validator applies completeness checking to the fixed family of window
// sizes.
type Validator struct {
	checker *completeness.Checker
	store   warehouse.Store
	raw     rawfeed.Source
	source  warehouse.Source
	logger  *log.Logger

	windowSizes      []int
	computeThreshold float64
}

// NewValidator creates a window validator over the given upstream source.
func NewValidator(checker *completeness.Checker, store warehouse.Store, raw rawfeed.Source, source warehouse.Source, logger *log.Logger) *Validator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Validator{
		checker:          checker,
		store:            store,
		raw:              raw,
		source:           source,
		logger:           logger,
		windowSizes:      types.DefaultWindowSizes,
		computeThreshold: types.DefaultComputeThreshold,
	}
}

// WithWindowSizes overrides the window family.
func (v *Validator) WithWindowSizes(sizes []int) *Validator {
	v.windowSizes = sizes
	return v
}

// WithComputeThreshold overrides the compute_with_flag floor.
func (v *Validator) WithComputeThreshold(threshold float64) *Validator {
	v.computeThreshold = threshold
	return v
}

// CheckWindows validates every configured window size for one entity.
// The schedule, raw feed, and source are each consulted once for the
// largest window; smaller windows are suffixes of the same date set.
func (v *Validator) CheckWindows(ctx context.Context, entityID string, asOf time.Time) (map[int]types.WindowResult, error) {
	maxSize := 0
	for _, n := range v.windowSizes {
		if n > maxSize {
			maxSize = n
		}
	}

	expected, err := v.checker.ExpectedGameDates(ctx, entityID, types.EntityPlayer, asOf, maxSize, completeness.WindowGames, time.Time{})
	if errors.Is(err, schedule.ErrNoTeam) {
		// No roster observation: nothing to measure against.
		out := make(map[int]types.WindowResult, len(v.windowSizes))
		for _, n := range v.windowSizes {
			out[n] = unresolvedResult(n)
		}
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("window: expected dates for %s: %w", entityID, err)
	}

	var statuses map[string]rawfeed.Status
	var available map[string]bool
	if len(expected) > 0 {
		if statuses, err = v.raw.Statuses(ctx, entityID, expected); err != nil {
			return nil, fmt.Errorf("window: raw statuses for %s: %w", entityID, err)
		}
		dates, err := v.store.EntityDates(ctx, v.source, entityID, expected[0], asOf)
		if err != nil {
			return nil, fmt.Errorf("window: source dates for %s: %w", entityID, err)
		}
		available = make(map[string]bool, len(dates))
		for _, d := range dates {
			available[types.FormatDay(d)] = true
		}
	}

	out := make(map[int]types.WindowResult, len(v.windowSizes))
	for _, n := range v.windowSizes {
		win := expected
		if len(win) > n {
			win = win[len(win)-n:]
		}
		out[n] = v.evaluate(n, win, statuses, available)
	}
	return out, nil
}

// evaluate scores one window against raw-feed statuses and source presence.
func (v *Validator) evaluate(size int, expected []time.Time, statuses map[string]rawfeed.Status, available map[string]bool) types.WindowResult {
	result := types.WindowResult{WindowSize: size, GapClassification: types.GapNone}

	if len(expected) == 0 {
		// Too early in the season or career: nothing to window over.
		result.Recommendation = types.RecommendSkip
		return result
	}

	for _, d := range expected {
		day := types.FormatDay(d)
		if statuses[day] == rawfeed.StatusDNP {
			result.DNPCount++
			continue
		}
		result.GamesRequired++
		if available[day] {
			result.GamesAvailable++
		}
	}

	if result.GamesRequired == 0 {
		// The entity sat out the entire window. Complete by definition:
		// 0 of 0 required games are missing.
		result.IsComplete = true
		result.CompletenessRatio = 1.0
		result.Recommendation = types.RecommendCompute
		return result
	}

	result.CompletenessRatio = float64(result.GamesAvailable) / float64(result.GamesRequired)
	switch {
	case result.CompletenessRatio >= 1.0:
		result.IsComplete = true
		result.Recommendation = types.RecommendCompute
	case result.CompletenessRatio >= v.computeThreshold:
		// Boundary resolves to compute_with_flag.
		result.Recommendation = types.RecommendComputeWithFlag
		result.GapClassification = types.GapData
	default:
		result.Recommendation = types.RecommendSkip
		result.GapClassification = types.GapData
	}
	return result
}

// ComputablePlayers splits a batch of entities into those whose window may
// be computed (with or without a flag) and those that must be skipped.
// On any batch-level error the split fails closed: every entity is routed
// to skip rather than risking contaminated averages.
func (v *Validator) ComputablePlayers(ctx context.Context, entityIDs []string, asOf time.Time, windowSize int) (computable, skip []string) {
	for _, id := range entityIDs {
		result, err := v.checkOne(ctx, id, asOf, windowSize)
		if err != nil {
			v.logger.Error("window batch failed closed", map[string]any{
				"entity": id,
				"error":  err.Error(),
			})
			return nil, entityIDs
		}
		if result.Recommendation == types.RecommendSkip {
			skip = append(skip, id)
		} else {
			computable = append(computable, id)
		}
	}
	return computable, skip
}

// checkOne evaluates a single window size for one entity.
func (v *Validator) checkOne(ctx context.Context, entityID string, asOf time.Time, windowSize int) (types.WindowResult, error) {
	expected, err := v.checker.ExpectedGameDates(ctx, entityID, types.EntityPlayer, asOf, windowSize, completeness.WindowGames, time.Time{})
	if errors.Is(err, schedule.ErrNoTeam) {
		return unresolvedResult(windowSize), nil
	}
	if err != nil {
		return types.WindowResult{}, fmt.Errorf("window: expected dates for %s: %w", entityID, err)
	}
	if len(expected) == 0 {
		return v.evaluate(windowSize, nil, nil, nil), nil
	}

	statuses, err := v.raw.Statuses(ctx, entityID, expected)
	if err != nil {
		return types.WindowResult{}, fmt.Errorf("window: raw statuses for %s: %w", entityID, err)
	}
	dates, err := v.store.EntityDates(ctx, v.source, entityID, expected[0], asOf)
	if err != nil {
		return types.WindowResult{}, fmt.Errorf("window: source dates for %s: %w", entityID, err)
	}
	available := make(map[string]bool, len(dates))
	for _, d := range dates {
		available[types.FormatDay(d)] = true
	}
	return v.evaluate(windowSize, expected, statuses, available), nil
}

func unresolvedResult(size int) types.WindowResult {
	return types.WindowResult{
		WindowSize:        size,
		Recommendation:    types.RecommendSkip,
		GapClassification: types.GapNameUnresolved,
	}
}
