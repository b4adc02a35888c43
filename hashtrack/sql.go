package hashtrack

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hoopline/gatekeeper/types"
)

// SQLHashStore implements HashStore over a SQL database.
type SQLHashStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite-backed hash store at path and
// runs idempotent schema migrations.
func OpenSQLite(path string) (*SQLHashStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("hashtrack: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLHashStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hashtrack: migrate: %w", err)
	}
	return s, nil
}

// NewSQLHashStore wraps an existing handle and runs migrations.
func NewSQLHashStore(db *sql.DB) (*SQLHashStore, error) {
	s := &SQLHashStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("hashtrack: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLHashStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS source_hashes (
		entity_key TEXT NOT NULL,
		source_prefix TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		PRIMARY KEY (entity_key, source_prefix)
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Get implements HashStore.
func (s *SQLHashStore) Get(ctx context.Context, entityKey string) ([]types.SourceHashRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_prefix, content_hash, last_updated
		 FROM source_hashes WHERE entity_key = ?
		 ORDER BY source_prefix`, entityKey)
	if err != nil {
		return nil, fmt.Errorf("hashtrack: get %s: %w", entityKey, err)
	}
	defer rows.Close()

	var recs []types.SourceHashRecord
	for rows.Next() {
		var rec types.SourceHashRecord
		var updated string
		if err := rows.Scan(&rec.SourcePrefix, &rec.ContentHash, &updated); err != nil {
			return nil, fmt.Errorf("hashtrack: scan %s: %w", entityKey, err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			rec.LastUpdated = ts
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Put implements HashStore with a delete-then-insert in one transaction,
// so a rerun replaces the set rather than accreting stale prefixes.
func (s *SQLHashStore) Put(ctx context.Context, entityKey string, recs []types.SourceHashRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("hashtrack: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_hashes WHERE entity_key = ?`, entityKey); err != nil {
		return fmt.Errorf("hashtrack: clear %s: %w", entityKey, err)
	}
	for _, rec := range recs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO source_hashes (entity_key, source_prefix, content_hash, last_updated)
			 VALUES (?, ?, ?, ?)`,
			entityKey, rec.SourcePrefix, rec.ContentHash, rec.LastUpdated.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("hashtrack: insert %s/%s: %w", entityKey, rec.SourcePrefix, err)
		}
	}
	return tx.Commit()
}

// Close releases the underlying handle.
func (s *SQLHashStore) Close() error { return s.db.Close() }

var _ HashStore = (*SQLHashStore)(nil)
