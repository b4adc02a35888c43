// Package warehouse provides the analytical-store boundary.
//
// The validation engine never walks raw tables row by row; it issues batched
// aggregate queries through the Store interface and reasons about the
// returned counts, timestamps, and content hashes. Real deployments point
// Store at the production analytical warehouse; local runs and tests use the
// bundled SQLite implementation or the in-package stub.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Query timeout defaults. Quick existence probes get a short deadline;
// full aggregate and window queries get a generous one.
const (
	DefaultProbeTimeout     = 60 * time.Second
	DefaultAggregateTimeout = 300 * time.Second
)

// ErrUnknownTable is returned when a query names a table the store does not
// have.
var ErrUnknownTable = errors.New("warehouse: unknown table")

// identPattern restricts table and column names to plain identifiers.
// Source names come from configuration, not user input, but the store is
// the last line of defense before SQL assembly.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether s is usable as a SQL identifier.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// Source names an upstream table and the columns the engine filters on.
type Source struct {
	// Table is the warehouse table name.
	Table string
	// DateColumn is the per-record date column (DATE granularity).
	DateColumn string
	// EntityColumn is the grouping column (player_id, team_id). Empty for
	// date-level sources.
	EntityColumn string
	// UpdatedColumn is the freshness timestamp column. Empty when the
	// table carries none.
	UpdatedColumn string
}

// Validate checks that all identifiers are well formed.
func (s Source) Validate() error {
	if !ValidIdent(s.Table) {
		return fmt.Errorf("warehouse: bad table name %q", s.Table)
	}
	if !ValidIdent(s.DateColumn) {
		return fmt.Errorf("warehouse: bad date column %q", s.DateColumn)
	}
	if s.EntityColumn != "" && !ValidIdent(s.EntityColumn) {
		return fmt.Errorf("warehouse: bad entity column %q", s.EntityColumn)
	}
	if s.UpdatedColumn != "" && !ValidIdent(s.UpdatedColumn) {
		return fmt.Errorf("warehouse: bad updated column %q", s.UpdatedColumn)
	}
	return nil
}

// AggregateSpec parameterizes one batched aggregate query.
type AggregateSpec struct {
	// Source is the table under aggregation.
	Source Source
	// Start and End bound the date filter, inclusive.
	Start time.Time
	End   time.Time
	// EntityIDs restricts the aggregation; empty means all entities.
	EntityIDs []string
	// Timeout overrides DefaultAggregateTimeout when positive.
	Timeout time.Duration
}

// AggregateRow is one entity's slice of an aggregate result.
type AggregateRow struct {
	// EntityID is the grouping key; empty for date-level sources.
	EntityID string
	// Count is the number of matching records.
	Count int64
	// MaxUpdatedAt is the most recent record timestamp; zero when the
	// source has no freshness column or no rows.
	MaxUpdatedAt time.Time
	// ContentHash is a representative hash of the aggregated slice, used
	// for change detection. Empty when unavailable.
	ContentHash string
}

// Store is the analytical-store query boundary.
// All methods are synchronous and apply a bounded timeout internally.
type Store interface {
	// Aggregate runs one batched count/max/hash query and returns one row
	// per entity present in the source. Entities with no records are
	// simply absent from the result.
	Aggregate(ctx context.Context, spec AggregateSpec) ([]AggregateRow, error)

	// DistinctDates returns the distinct record dates in [start, end],
	// ascending. Used for exact gap enumeration.
	DistinctDates(ctx context.Context, src Source, start, end time.Time) ([]time.Time, error)

	// EntityDates returns the distinct record dates for one entity in
	// [start, end], ascending. Used by window validation, where per-date
	// presence matters rather than totals.
	EntityDates(ctx context.Context, src Source, entityID string, start, end time.Time) ([]time.Time, error)

	// RowCount is the quick existence probe: records for src on asOf.
	RowCount(ctx context.Context, src Source, asOf time.Time) (int64, error)

	// Close releases store resources.
	Close() error
}
