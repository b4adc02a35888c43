// Package ledger provides the append-only run and failure ledgers.
//
// The run ledger is the system's memory of what ran and how it ended; the
// soft-dependency resolver and upstream status checks read it. The failure
// ledger records entity-level shortfalls for later reclassification and
// reprocessing. Both are designed for concurrent writers: the stores are
// insert-only, and the failure ledger's delete-then-insert upsert keeps
// reruns idempotent per (stage, date).
package ledger

import (
	"context"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// RunLedger is the append-only run history.
type RunLedger interface {
	// Append writes one run record. Completed records are never updated
	// in place; every attempt appends its own row.
	Append(ctx context.Context, rec *types.RunRecord) error

	// Latest returns the most recent run record for (stage, asOf), or nil
	// when the stage has never run for that date.
	Latest(ctx context.Context, stage string, asOf time.Time) (*types.RunRecord, error)

	// LatestCompleted is Latest restricted to success and partial records.
	// Coverage read off a failed or skipped attempt would not describe
	// data the upstream actually delivered.
	LatestCompleted(ctx context.Context, stage string, asOf time.Time) (*types.RunRecord, error)

	// History returns up to limit most recent records for a stage across
	// all dates, newest first. Used by the status CLI surface.
	History(ctx context.Context, stage string, limit int) ([]types.RunRecord, error)
}

// FailureLedger is the entity-level failure history.
type FailureLedger interface {
	// Replace atomically removes prior failure rows for (stage, asOf) and
	// inserts the given set: at most one row per (stage, date, entity)
	// survives reruns.
	Replace(ctx context.Context, stage string, asOf time.Time, recs []types.FailureRecord) error

	// Unclassified returns INCOMPLETE_DATA records for (stage, asOf)
	// whose FailureType has not been filled in yet.
	Unclassified(ctx context.Context, stage string, asOf time.Time) ([]types.FailureRecord, error)

	// SetFailureType backfills the fine-grained classification of one
	// record. The only permitted mutation of a failure row.
	SetFailureType(ctx context.Context, stage string, asOf time.Time, entityID string, ft types.FailureType, correctable bool) error
}
