package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// SQLProvider reads the schedule from warehouse tables:
//
//	schedule(team_id, game_date)        one row per team per scheduled game
//	roster_log(player_id, team_id, observed_date)
//	seasons(label, start_date, end_date)
type SQLProvider struct {
	db *sql.DB
}

// NewSQLProvider creates a schedule provider over an existing handle.
func NewSQLProvider(db *sql.DB) *SQLProvider {
	return &SQLProvider{db: db}
}

// TeamGameDates implements Provider.
func (p *SQLProvider) TeamGameDates(ctx context.Context, teamID string, start, end time.Time) ([]time.Time, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT game_date FROM schedule WHERE team_id = ? AND game_date >= ? AND game_date <= ? ORDER BY game_date",
		teamID, types.FormatDay(start), types.FormatDay(end),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule: team game dates: %w", err)
	}
	return scanDates(rows)
}

// LastNTeamGameDates implements Provider.
func (p *SQLProvider) LastNTeamGameDates(ctx context.Context, teamID string, asOf time.Time, n int) ([]time.Time, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT game_date FROM schedule WHERE team_id = ? AND game_date <= ? ORDER BY game_date DESC LIMIT ?",
		teamID, types.FormatDay(asOf), n,
	)
	if err != nil {
		return nil, fmt.Errorf("schedule: last %d game dates: %w", n, err)
	}
	dates, err := scanDates(rows)
	if err != nil {
		return nil, err
	}
	// Query returns newest-first; callers expect ascending.
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}
	return dates, nil
}

// PlayerTeam implements Provider.
func (p *SQLProvider) PlayerTeam(ctx context.Context, playerID string, asOf time.Time) (string, error) {
	var teamID string
	err := p.db.QueryRowContext(ctx,
		"SELECT team_id FROM roster_log WHERE player_id = ? AND observed_date <= ? ORDER BY observed_date DESC LIMIT 1",
		playerID, types.FormatDay(asOf),
	).Scan(&teamID)
	if err == sql.ErrNoRows {
		return "", ErrNoTeam
	}
	if err != nil {
		return "", fmt.Errorf("schedule: player team: %w", err)
	}
	return teamID, nil
}

// SeasonFor implements Provider.
func (p *SQLProvider) SeasonFor(ctx context.Context, asOf time.Time) (Season, error) {
	var (
		season     Season
		start, end string
	)
	err := p.db.QueryRowContext(ctx,
		"SELECT label, start_date, end_date FROM seasons WHERE start_date <= ? ORDER BY start_date DESC LIMIT 1",
		types.FormatDay(asOf),
	).Scan(&season.Label, &start, &end)
	if err == sql.ErrNoRows {
		return Season{}, fmt.Errorf("schedule: no season at or before %s", types.FormatDay(asOf))
	}
	if err != nil {
		return Season{}, fmt.Errorf("schedule: season lookup: %w", err)
	}
	if season.Start, err = types.ParseDay(start); err != nil {
		return Season{}, err
	}
	if season.End, err = types.ParseDay(end); err != nil {
		return Season{}, err
	}
	return season, nil
}

func scanDates(rows *sql.Rows) ([]time.Time, error) {
	defer func() { _ = rows.Close() }()
	var dates []time.Time
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("schedule: scan date: %w", err)
		}
		d, err := types.ParseDay(day)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Verify SQLProvider implements the provider interface.
var _ Provider = (*SQLProvider)(nil)
