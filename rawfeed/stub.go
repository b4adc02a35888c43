package rawfeed

import (
	"context"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// StubSource is an in-memory Source for tests.
type StubSource struct {
	// Entries maps playerID -> day (YYYY-MM-DD) -> status. Days not
	// present report StatusAbsent, matching the SQL implementation.
	Entries map[string]map[string]Status
	// Err, if non-nil, is returned by Statuses.
	Err error
}

// NewStubSource creates an empty stub source.
func NewStubSource() *StubSource {
	return &StubSource{Entries: make(map[string]map[string]Status)}
}

// Set records a status for a player and day.
func (s *StubSource) Set(playerID, day string, status Status) {
	if s.Entries[playerID] == nil {
		s.Entries[playerID] = make(map[string]Status)
	}
	s.Entries[playerID][day] = status
}

// Statuses implements Source.
func (s *StubSource) Statuses(_ context.Context, playerID string, dates []time.Time) (map[string]Status, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(map[string]Status, len(dates))
	for _, d := range dates {
		day := types.FormatDay(d)
		if status, ok := s.Entries[playerID][day]; ok {
			out[day] = status
		} else {
			out[day] = StatusAbsent
		}
	}
	return out, nil
}

// Verify StubSource implements the source interface.
var _ Source = (*StubSource)(nil)
