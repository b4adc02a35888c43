package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// StubProvider is an in-memory Provider for tests.
type StubProvider struct {
	// Games maps team ID to scheduled game dates.
	Games map[string][]time.Time
	// Teams maps player ID to team ID (most recent observation).
	Teams map[string]string
	// Season is returned by SeasonFor for every date.
	Season Season
	// Err, if non-nil, is returned by every method.
	Err error
}

// NewStubProvider creates an empty stub provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{
		Games: make(map[string][]time.Time),
		Teams: make(map[string]string),
	}
}

// AddGames schedules games for a team on the given days.
func (p *StubProvider) AddGames(teamID string, days ...string) {
	for _, day := range days {
		d, err := types.ParseDay(day)
		if err != nil {
			panic(err) // test fixture bug, fail loudly
		}
		p.Games[teamID] = append(p.Games[teamID], d)
	}
	sort.Slice(p.Games[teamID], func(i, j int) bool {
		return p.Games[teamID][i].Before(p.Games[teamID][j])
	})
}

// TeamGameDates implements Provider.
func (p *StubProvider) TeamGameDates(_ context.Context, teamID string, start, end time.Time) ([]time.Time, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	var out []time.Time
	for _, d := range p.Games[teamID] {
		if !d.Before(types.Midnight(start)) && !d.After(types.Midnight(end)) {
			out = append(out, d)
		}
	}
	return out, nil
}

// LastNTeamGameDates implements Provider.
func (p *StubProvider) LastNTeamGameDates(_ context.Context, teamID string, asOf time.Time, n int) ([]time.Time, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	var upTo []time.Time
	for _, d := range p.Games[teamID] {
		if !d.After(types.Midnight(asOf)) {
			upTo = append(upTo, d)
		}
	}
	if len(upTo) > n {
		upTo = upTo[len(upTo)-n:]
	}
	return upTo, nil
}

// PlayerTeam implements Provider.
func (p *StubProvider) PlayerTeam(_ context.Context, playerID string, _ time.Time) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	teamID, ok := p.Teams[playerID]
	if !ok {
		return "", ErrNoTeam
	}
	return teamID, nil
}

// SeasonFor implements Provider.
func (p *StubProvider) SeasonFor(context.Context, time.Time) (Season, error) {
	if p.Err != nil {
		return Season{}, p.Err
	}
	return p.Season, nil
}

// Verify StubProvider implements the provider interface.
var _ Provider = (*StubProvider)(nil)
