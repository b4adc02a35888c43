package rawfeed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// SQLSource reads the raw feed from a warehouse table:
//
//	raw_game_logs(player_id, game_date, dnp)
//
// dnp is 1 for explicit did-not-play rows, 0 for participation rows.
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource creates a raw-feed source over an existing handle.
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// Statuses implements Source with one query for the whole date batch.
func (s *SQLSource) Statuses(ctx context.Context, playerID string, dates []time.Time) (map[string]Status, error) {
	out := make(map[string]Status, len(dates))
	if len(dates) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(dates)+1)
	args = append(args, playerID)
	for _, d := range dates {
		out[types.FormatDay(d)] = StatusAbsent
		args = append(args, types.FormatDay(d))
	}

	q := fmt.Sprintf(
		"SELECT game_date, dnp FROM raw_game_logs WHERE player_id = ? AND game_date IN (%s)",
		strings.TrimSuffix(strings.Repeat("?,", len(dates)), ","),
	)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("rawfeed: statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			day string
			dnp int
		)
		if err := rows.Scan(&day, &dnp); err != nil {
			return nil, fmt.Errorf("rawfeed: scan: %w", err)
		}
		if dnp != 0 {
			out[day] = StatusDNP
		} else {
			out[day] = StatusPlayed
		}
	}
	return out, rows.Err()
}

// Verify SQLSource implements the source interface.
var _ Source = (*SQLSource)(nil)
