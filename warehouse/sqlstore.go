package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"

	"github.com/hoopline/gatekeeper/types"
)

// SQLStore is a database/sql-backed Store. The engine only needs portable
// aggregates (COUNT, MAX, GROUP BY), so the same implementation serves the
// bundled SQLite warehouse and anything else reachable through database/sql.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite-backed warehouse at path.
// WAL mode keeps concurrent readers cheap; the engine itself is the only
// writer within a run.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("warehouse: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLStore{db: db}, nil
}

// NewSQLStore wraps an existing database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB exposes the underlying handle for schema setup in tests and tooling.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Aggregate implements Store. One query per call regardless of how many
// entities are requested; per-entity queries do not survive contact with a
// 450-player batch.
func (s *SQLStore) Aggregate(ctx context.Context, spec AggregateSpec) ([]AggregateRow, error) {
	if err := spec.Source.Validate(); err != nil {
		return nil, err
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultAggregateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	src := spec.Source
	var b strings.Builder
	args := make([]any, 0, len(spec.EntityIDs)+2)

	if src.EntityColumn != "" {
		fmt.Fprintf(&b, "SELECT %s, COUNT(*)", src.EntityColumn)
	} else {
		b.WriteString("SELECT '', COUNT(*)")
	}
	if src.UpdatedColumn != "" {
		fmt.Fprintf(&b, ", MAX(%s)", src.UpdatedColumn)
	} else {
		b.WriteString(", NULL")
	}
	fmt.Fprintf(&b, " FROM %s WHERE %s >= ? AND %s <= ?", src.Table, src.DateColumn, src.DateColumn)
	args = append(args, types.FormatDay(spec.Start), types.FormatDay(spec.End))

	if len(spec.EntityIDs) > 0 && src.EntityColumn != "" {
		fmt.Fprintf(&b, " AND %s IN (%s)", src.EntityColumn, placeholders(len(spec.EntityIDs)))
		for _, id := range spec.EntityIDs {
			args = append(args, id)
		}
	}
	if src.EntityColumn != "" {
		fmt.Fprintf(&b, " GROUP BY %s", src.EntityColumn)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("warehouse: aggregate on %s: %w", src.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []AggregateRow
	for rows.Next() {
		var (
			row     AggregateRow
			updated sql.NullString
		)
		if err := rows.Scan(&row.EntityID, &row.Count, &updated); err != nil {
			return nil, fmt.Errorf("warehouse: scan aggregate row: %w", err)
		}
		if updated.Valid {
			row.MaxUpdatedAt = parseTimestamp(updated.String)
		}
		row.ContentHash = sliceHash(row.EntityID, row.Count, updated.String)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse: aggregate on %s: %w", src.Table, err)
	}
	return out, nil
}

// DistinctDates implements Store.
func (s *SQLStore) DistinctDates(ctx context.Context, src Source, start, end time.Time) ([]time.Time, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultAggregateTimeout)
	defer cancel()

	q := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s >= ? AND %s <= ? ORDER BY %s",
		src.DateColumn, src.Table, src.DateColumn, src.DateColumn, src.DateColumn,
	)
	rows, err := s.db.QueryContext(ctx, q, types.FormatDay(start), types.FormatDay(end))
	if err != nil {
		return nil, fmt.Errorf("warehouse: distinct dates on %s: %w", src.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var dates []time.Time
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("warehouse: scan date: %w", err)
		}
		d, err := types.ParseDay(day)
		if err != nil {
			return nil, fmt.Errorf("warehouse: %s.%s: %w", src.Table, src.DateColumn, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// EntityDates implements Store.
func (s *SQLStore) EntityDates(ctx context.Context, src Source, entityID string, start, end time.Time) ([]time.Time, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if src.EntityColumn == "" {
		return nil, fmt.Errorf("warehouse: %s has no entity column", src.Table)
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultAggregateTimeout)
	defer cancel()

	q := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s = ? AND %s >= ? AND %s <= ? ORDER BY %s",
		src.DateColumn, src.Table, src.EntityColumn, src.DateColumn, src.DateColumn, src.DateColumn,
	)
	rows, err := s.db.QueryContext(ctx, q, entityID, types.FormatDay(start), types.FormatDay(end))
	if err != nil {
		return nil, fmt.Errorf("warehouse: entity dates on %s: %w", src.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var dates []time.Time
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("warehouse: scan date: %w", err)
		}
		d, err := types.ParseDay(day)
		if err != nil {
			return nil, fmt.Errorf("warehouse: %s.%s: %w", src.Table, src.DateColumn, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// RowCount implements Store with the short probe timeout.
func (s *SQLStore) RowCount(ctx context.Context, src Source, asOf time.Time) (int64, error) {
	if err := src.Validate(); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", src.Table, src.DateColumn)
	var n int64
	if err := s.db.QueryRowContext(ctx, q, types.FormatDay(asOf)).Scan(&n); err != nil {
		return 0, fmt.Errorf("warehouse: row count on %s: %w", src.Table, err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// sliceHash derives the representative content hash for an aggregate row.
// Count plus most-recent timestamp is enough to detect "did this slice
// change since last run" without rereading the rows themselves.
func sliceHash(entityID string, count int64, maxUpdated string) string {
	h := xxhash.New()
	_, _ = fmt.Fprintf(h, "%s|%d|%s", entityID, count, maxUpdated)
	return fmt.Sprintf("%016x", h.Sum64())
}

// parseTimestamp accepts the formats warehouse tables actually contain:
// RFC 3339 and the SQLite default layout.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", types.DayFormat} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Verify SQLStore implements the store interface.
var _ Store = (*SQLStore)(nil)
