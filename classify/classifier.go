// Package classify determines why an entity's data came up short.
//
// The distinction that matters operationally is correctable versus not:
// a DATA_GAP closes by itself once the raw feed catches up and is worth
// reprocessing, a PLAYER_DNP is an expected absence and is not. The
// classifier consults the raw per-game feed to tell them apart.
package classify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/rawfeed"
	"github.com/hoopline/gatekeeper/types"
)

// Classifier resolves fine-grained failure types for incomplete entities.
type Classifier struct {
	raw    rawfeed.Source
	logger *log.Logger
}

// NewClassifier creates a classifier over the given raw feed.
func NewClassifier(raw rawfeed.Source, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Classifier{raw: raw, logger: logger}
}

// Classify determines the failure type for one entity given its expected
// and actual game dates.
//
// Empty expected reads as INSUFFICIENT_HISTORY: too early in the career
// or season to evaluate, not correctable. Actual covering expected reads
// as COMPLETE: the failure record was stale and nothing needs fixing.
// Otherwise the missing dates are probed against the raw feed when
// checkRawData is set: dates with an explicit did-not-play marker are
// expected absences, dates missing from the feed entirely are gaps that
// reprocessing can close.
func (c *Classifier) Classify(ctx context.Context, entityID string, asOf time.Time, expected, actual []time.Time, checkRawData bool) (types.Classification, error) {
	result := types.Classification{
		ExpectedCount: len(expected),
		ActualCount:   len(actual),
	}

	if len(expected) == 0 {
		result.FailureType = types.FailureInsufficientHistory
		return result, nil
	}

	have := make(map[string]bool, len(actual))
	for _, d := range actual {
		have[types.FormatDay(d)] = true
	}
	for _, d := range expected {
		if !have[types.FormatDay(d)] {
			result.MissingDates = append(result.MissingDates, types.Midnight(d))
		}
	}
	sort.Slice(result.MissingDates, func(i, j int) bool {
		return result.MissingDates[i].Before(result.MissingDates[j])
	})

	if len(result.MissingDates) == 0 {
		result.FailureType = types.FailureComplete
		return result, nil
	}

	if !checkRawData {
		// Without the raw feed every shortfall is presumed a gap.
		result.FailureType = types.FailureDataGap
		result.IsCorrectable = true
		return result, nil
	}

	statuses, err := c.raw.Statuses(ctx, entityID, result.MissingDates)
	if err != nil {
		return types.Classification{}, fmt.Errorf("classify: raw probe for %s: %w", entityID, err)
	}

	var dnp, gaps int
	for _, d := range result.MissingDates {
		if statuses[types.FormatDay(d)] == rawfeed.StatusDNP {
			dnp++
		} else {
			gaps++
		}
	}
	switch {
	case gaps == 0:
		result.FailureType = types.FailurePlayerDNP
	case dnp == 0:
		result.FailureType = types.FailureDataGap
		result.IsCorrectable = true
	default:
		result.FailureType = types.FailureMixed
		result.IsCorrectable = true
	}
	return result, nil
}

// Reclassify backfills the failure type of previously recorded
// INCOMPLETE_DATA failures for (stage, asOf), using the counts and
// missing dates each record already carries. Returns the number of
// records updated. Per-record failures are logged and skipped so one bad
// row cannot stall the pass.
func (c *Classifier) Reclassify(ctx context.Context, failures ledger.FailureLedger, stage string, asOf time.Time) (int, error) {
	recs, err := failures.Unclassified(ctx, stage, asOf)
	if err != nil {
		return 0, fmt.Errorf("classify: load unclassified: %w", err)
	}

	updated := 0
	for _, rec := range recs {
		expected := rec.MissingDates
		// The record's missing dates are exactly the unaccounted-for
		// games; replaying them with zero actuals reproduces the
		// classification without re-deriving expected sets.
		result, err := c.Classify(ctx, rec.EntityID, asOf, expected, nil, true)
		if err != nil {
			c.logger.Warn("reclassification skipped entity", map[string]any{
				"stage":  stage,
				"entity": rec.EntityID,
				"error":  err.Error(),
			})
			continue
		}
		if err := failures.SetFailureType(ctx, stage, asOf, rec.EntityID, result.FailureType, result.IsCorrectable); err != nil {
			c.logger.Warn("reclassification write failed", map[string]any{
				"stage":  stage,
				"entity": rec.EntityID,
				"error":  err.Error(),
			})
			continue
		}
		updated++
	}
	return updated, nil
}
