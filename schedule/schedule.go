// Package schedule provides the authoritative game schedule boundary.
//
// Expected record counts are always derived from the schedule, never from
// the data under validation: a source cannot vouch for its own
// completeness. Player entities are mapped to their most-recently-observed
// team and inherit that team's game count, a deliberate approximation that
// tolerates trades without attempting per-player injury awareness.
package schedule

import (
	"context"
	"errors"
	"time"
)

// ErrNoTeam is returned when a player has no roster observation at or
// before the requested date.
var ErrNoTeam = errors.New("schedule: no team observed for player")

// Season describes one season's calendar bounds.
type Season struct {
	// Label is the season identifier (e.g. "2025-26").
	Label string
	// Start and End bound the season's scheduled games, inclusive.
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls inside the season.
func (s Season) Contains(d time.Time) bool {
	return !d.Before(s.Start) && !d.After(s.End)
}

// Provider answers schedule questions for teams and players.
type Provider interface {
	// TeamGameDates returns the dates the team was scheduled to play in
	// [start, end], ascending.
	TeamGameDates(ctx context.Context, teamID string, start, end time.Time) ([]time.Time, error)

	// LastNTeamGameDates returns the team's most recent n scheduled game
	// dates at or before asOf, ascending. Fewer than n when the schedule
	// has not produced that many yet.
	LastNTeamGameDates(ctx context.Context, teamID string, asOf time.Time, n int) ([]time.Time, error)

	// PlayerTeam maps a player to the most-recently-observed team at or
	// before asOf. Returns ErrNoTeam when no roster observation exists.
	PlayerTeam(ctx context.Context, playerID string, asOf time.Time) (string, error)

	// SeasonFor returns the season containing asOf, or the most recently
	// concluded season when asOf falls between seasons.
	SeasonFor(ctx context.Context, asOf time.Time) (Season, error)
}
