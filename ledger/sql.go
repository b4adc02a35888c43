package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hoopline/gatekeeper/types"
)

// SQLLedger implements both ledgers over a SQL database.
type SQLLedger struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite-backed ledger at path and runs
// idempotent schema migrations.
func OpenSQLite(path string) (*SQLLedger, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &SQLLedger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return l, nil
}

// NewSQLLedger wraps an existing handle and runs migrations.
func NewSQLLedger(db *sql.DB) (*SQLLedger, error) {
	l := &SQLLedger{db: db}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return l, nil
}

func (l *SQLLedger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		stage_name TEXT NOT NULL,
		as_of TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_seconds REAL NOT NULL DEFAULT 0,
		records_processed INTEGER NOT NULL DEFAULT 0,
		coverage_pct REAL NOT NULL DEFAULT 0,
		dependency_summary TEXT,
		failure_category TEXT,
		backfill INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_stage_date ON runs(stage_name, as_of, started_at);

	CREATE TABLE IF NOT EXISTS failures (
		stage_name TEXT NOT NULL,
		as_of TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		category TEXT NOT NULL,
		failure_type TEXT,
		can_retry INTEGER NOT NULL DEFAULT 0,
		expected_count INTEGER NOT NULL DEFAULT 0,
		actual_count INTEGER NOT NULL DEFAULT 0,
		missing_dates TEXT,
		recorded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_failures_stage_date ON failures(stage_name, as_of);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Close closes the database handle.
func (l *SQLLedger) Close() error {
	return l.db.Close()
}

// Append implements RunLedger.
func (l *SQLLedger) Append(ctx context.Context, rec *types.RunRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, stage_name, as_of, status, started_at, duration_seconds,
			records_processed, coverage_pct, dependency_summary, failure_category, backfill)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.StageName, types.FormatDay(rec.AsOf), string(rec.Status),
		rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.DurationSeconds,
		rec.RecordsProcessed, rec.CoveragePct, rec.DependencySummary,
		string(rec.FailureCategory), boolInt(rec.Backfill),
	)
	if err != nil {
		return fmt.Errorf("ledger: append run %s: %w", rec.RunID, err)
	}
	return nil
}

// Latest implements RunLedger.
func (l *SQLLedger) Latest(ctx context.Context, stage string, asOf time.Time) (*types.RunRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT run_id, stage_name, as_of, status, started_at, duration_seconds,
			records_processed, coverage_pct, dependency_summary, failure_category, backfill
		FROM runs WHERE stage_name = ? AND as_of = ?
		ORDER BY started_at DESC LIMIT 1`,
		stage, types.FormatDay(asOf),
	)
	rec, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: latest run for %s/%s: %w", stage, types.FormatDay(asOf), err)
	}
	return rec, nil
}

// LatestCompleted implements RunLedger.
func (l *SQLLedger) LatestCompleted(ctx context.Context, stage string, asOf time.Time) (*types.RunRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT run_id, stage_name, as_of, status, started_at, duration_seconds,
			records_processed, coverage_pct, dependency_summary, failure_category, backfill
		FROM runs WHERE stage_name = ? AND as_of = ? AND status IN (?, ?)
		ORDER BY started_at DESC LIMIT 1`,
		stage, types.FormatDay(asOf), string(types.RunSuccess), string(types.RunPartial),
	)
	rec, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: latest completed run for %s/%s: %w", stage, types.FormatDay(asOf), err)
	}
	return rec, nil
}

// History implements RunLedger.
func (l *SQLLedger) History(ctx context.Context, stage string, limit int) ([]types.RunRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, stage_name, as_of, status, started_at, duration_seconds,
			records_processed, coverage_pct, dependency_summary, failure_category, backfill
		FROM runs WHERE stage_name = ?
		ORDER BY started_at DESC LIMIT ?`,
		stage, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: history for %s: %w", stage, err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan history row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Replace implements FailureLedger with the delete-then-insert pattern.
func (l *SQLLedger) Replace(ctx context.Context, stage string, asOf time.Time, recs []types.FailureRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	day := types.FormatDay(asOf)
	if _, err := tx.ExecContext(ctx, "DELETE FROM failures WHERE stage_name = ? AND as_of = ?", stage, day); err != nil {
		return fmt.Errorf("ledger: clear failures for %s/%s: %w", stage, day, err)
	}
	for _, rec := range recs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO failures (stage_name, as_of, entity_id, entity_type, category,
				failure_type, can_retry, expected_count, actual_count, missing_dates, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stage, day, rec.EntityID, string(rec.EntityType), string(rec.Category),
			string(rec.FailureType), boolInt(rec.CanRetry), rec.ExpectedCount, rec.ActualCount,
			joinDates(rec.MissingDates), rec.RecordedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("ledger: insert failure for %s: %w", rec.EntityID, err)
		}
	}
	return tx.Commit()
}

// Unclassified implements FailureLedger.
func (l *SQLLedger) Unclassified(ctx context.Context, stage string, asOf time.Time) ([]types.FailureRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT entity_id, entity_type, category, can_retry, expected_count, actual_count, missing_dates, recorded_at
		FROM failures
		WHERE stage_name = ? AND as_of = ? AND category = ? AND (failure_type IS NULL OR failure_type = '')`,
		stage, types.FormatDay(asOf), string(types.EntityIncompleteData),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: unclassified failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.FailureRecord
	for rows.Next() {
		rec := types.FailureRecord{StageName: stage, AsOf: types.Midnight(asOf)}
		var (
			entityType, category, missing, recorded string
			canRetry                                int
		)
		if err := rows.Scan(&rec.EntityID, &entityType, &category, &canRetry,
			&rec.ExpectedCount, &rec.ActualCount, &missing, &recorded); err != nil {
			return nil, fmt.Errorf("ledger: scan failure row: %w", err)
		}
		rec.EntityType = types.EntityType(entityType)
		rec.Category = types.EntityFailureCategory(category)
		rec.CanRetry = canRetry != 0
		rec.MissingDates = splitDates(missing)
		if t, err := time.Parse(time.RFC3339Nano, recorded); err == nil {
			rec.RecordedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetFailureType implements FailureLedger.
func (l *SQLLedger) SetFailureType(ctx context.Context, stage string, asOf time.Time, entityID string, ft types.FailureType, correctable bool) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE failures SET failure_type = ?, can_retry = ?
		WHERE stage_name = ? AND as_of = ? AND entity_id = ?`,
		string(ft), boolInt(correctable), stage, types.FormatDay(asOf), entityID,
	)
	if err != nil {
		return fmt.Errorf("ledger: set failure type for %s: %w", entityID, err)
	}
	return nil
}

func scanRun(scan func(...any) error) (*types.RunRecord, error) {
	var (
		rec                         types.RunRecord
		asOf, started, status, cat  string
		summary                     sql.NullString
		backfill                    int
	)
	err := scan(&rec.RunID, &rec.StageName, &asOf, &status, &started, &rec.DurationSeconds,
		&rec.RecordsProcessed, &rec.CoveragePct, &summary, &cat, &backfill)
	if err != nil {
		return nil, err
	}
	if rec.AsOf, err = types.ParseDay(asOf); err != nil {
		return nil, err
	}
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, err
	}
	rec.Status = types.RunStatus(status)
	rec.FailureCategory = types.FailureCategory(cat)
	rec.DependencySummary = summary.String
	rec.Backfill = backfill != 0
	return &rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinDates(dates []time.Time) string {
	days := make([]string, len(dates))
	for i, d := range dates {
		days[i] = types.FormatDay(d)
	}
	return strings.Join(days, ",")
}

func splitDates(s string) []time.Time {
	if s == "" {
		return nil
	}
	var out []time.Time
	for _, day := range strings.Split(s, ",") {
		if d, err := types.ParseDay(day); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// Verify SQLLedger implements both ledger interfaces.
var (
	_ RunLedger     = (*SQLLedger)(nil)
	_ FailureLedger = (*SQLLedger)(nil)
)
