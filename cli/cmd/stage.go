package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hoopline/gatekeeper/classify"
	"github.com/hoopline/gatekeeper/completeness"
	"github.com/hoopline/gatekeeper/hashtrack"
	"github.com/hoopline/gatekeeper/lifecycle"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
	"github.com/hoopline/gatekeeper/window"
)

// hashWindowDays bounds the aggregate used for change detection. Changes
// older than this do not trigger recomputation; the backfill path handles
// those explicitly.
const hashWindowDays = 30

// validationStage runs the completeness validation pass for one pipeline
// stage: extract the current source fingerprint, measure schedule-vs-actual
// coverage per entity, split entities into computable and skip lists, and
// report the result. It is constructed per invocation and carries the
// entity set between phases.
type validationStage struct {
	name       string
	upstreams  []string
	sourceName string
	source     warehouse.Source
	output     string

	store      warehouse.Store
	checker    *completeness.Checker
	validator  *window.Validator
	classifier *classify.Classifier
	probeRaw   bool
	maxWindow  int
	logger     *log.Logger

	entities   []string
	computable []string
	skipped    []string
}

var _ lifecycle.Stage = (*validationStage)(nil)

func (s *validationStage) Name() string        { return s.name }
func (s *validationStage) Upstreams() []string { return s.upstreams }

// Extract fingerprints the source and fixes the entity set under check.
func (s *validationStage) Extract(ctx context.Context, run *lifecycle.Run) error {
	start := run.AsOf.AddDate(0, 0, -hashWindowDays)
	rows, err := s.store.Aggregate(ctx, warehouse.AggregateSpec{
		Source: s.source,
		Start:  start,
		End:    run.AsOf,
	})
	if err != nil {
		return fmt.Errorf("extract %s: %w", s.sourceName, err)
	}

	fingerprint := make(map[string]string, len(rows))
	s.entities = s.entities[:0]
	for _, row := range rows {
		if row.EntityID == "" {
			continue
		}
		s.entities = append(s.entities, row.EntityID)
		hash := row.ContentHash
		if hash == "" {
			hash = fmt.Sprintf("%d@%d", row.Count, row.MaxUpdatedAt.Unix())
		}
		fingerprint[row.EntityID] = hash
	}
	sort.Strings(s.entities)

	run.SourceHashes = map[string]string{
		s.sourceName: hashtrack.HashRows(fingerprint),
	}
	s.logger.Info("extracted source fingerprint", map[string]any{
		"source":   s.sourceName,
		"entities": len(s.entities),
	})
	return nil
}

// Validate measures coverage per entity and records shortfalls.
func (s *validationStage) Validate(ctx context.Context, run *lifecycle.Run) error {
	if len(s.entities) == 0 {
		run.CoveragePct = 0
		return nil
	}

	coverage, err := s.checker.CheckCompleteness(ctx, completeness.Request{
		EntityIDs:  s.entities,
		EntityType: types.EntityPlayer,
		AsOf:       run.AsOf,
		Source:     s.source,
		Lookback:   s.maxWindow,
		WindowType: completeness.WindowGames,
	})
	if err != nil {
		return fmt.Errorf("validate %s: %w", s.name, err)
	}

	var sum float64
	for _, id := range s.entities {
		result := coverage[id]
		sum += result.CompletenessPct
		if result.IsComplete {
			continue
		}
		rec, cerr := s.classifyShortfall(ctx, id, run.AsOf, result)
		if cerr != nil {
			// Classification is advisory; the shortfall itself stands.
			s.logger.Warn("shortfall classification failed", map[string]any{
				"entity": id, "error": cerr.Error(),
			})
		}
		run.Failures = append(run.Failures, rec)
	}
	run.CoveragePct = sum / float64(len(s.entities))
	run.EntitiesChecked = len(s.entities)
	run.Partial = len(run.Failures) > 0
	return nil
}

// classifyShortfall builds one failure record, with the fine-grained type
// filled in when the expected and actual date sets can be compared.
func (s *validationStage) classifyShortfall(ctx context.Context, entityID string, asOf time.Time, cov types.CoverageResult) (types.FailureRecord, error) {
	rec := types.FailureRecord{
		StageName:     s.name,
		AsOf:          asOf,
		EntityID:      entityID,
		EntityType:    types.EntityPlayer,
		Category:      types.EntityIncompleteData,
		ExpectedCount: cov.ExpectedCount,
		ActualCount:   cov.ActualCount,
	}

	expected, err := s.checker.ExpectedGameDates(ctx, entityID, types.EntityPlayer, asOf, s.maxWindow, completeness.WindowGames, time.Time{})
	if err != nil {
		return rec, err
	}
	var actual []time.Time
	if len(expected) > 0 {
		if actual, err = s.store.EntityDates(ctx, s.source, entityID, expected[0], asOf); err != nil {
			return rec, err
		}
	}
	cls, err := s.classifier.Classify(ctx, entityID, asOf, expected, actual, s.probeRaw)
	if err != nil {
		return rec, err
	}
	rec.FailureType = cls.FailureType
	rec.CanRetry = cls.IsCorrectable
	rec.MissingDates = cls.MissingDates
	if cls.FailureType == types.FailureInsufficientHistory {
		rec.Category = types.EntityInsufficientHistory
	}
	return rec, nil
}

// Compute splits the entity set into computable and skip lists using the
// largest configured window.
func (s *validationStage) Compute(ctx context.Context, run *lifecycle.Run) error {
	s.computable, s.skipped = s.validator.ComputablePlayers(ctx, s.entities, run.AsOf, s.maxWindow)
	run.Metadata["computable"] = fmt.Sprintf("%d", len(s.computable))
	run.Metadata["skipped"] = fmt.Sprintf("%d", len(s.skipped))
	return nil
}

// Persist reports the validated entity count; the controller writes the
// ledgers.
func (s *validationStage) Persist(_ context.Context, run *lifecycle.Run) (int64, error) {
	run.OutputLocation = s.output
	return int64(len(s.computable)), nil
}
