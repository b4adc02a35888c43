package warehouse

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// StubRecord is one synthetic warehouse row for the stub store.
type StubRecord struct {
	EntityID  string
	Date      time.Time
	UpdatedAt time.Time
	Hash      string
}

// StubStore is an in-memory Store for tests. Tables are seeded with
// StubRecords; queries aggregate over them the same way the SQL store does.
type StubStore struct {
	mu sync.Mutex

	tables map[string][]StubRecord

	// ErrOnQuery, if non-nil, is returned by every query method.
	ErrOnQuery error
	// AggregateCalls counts Aggregate invocations, for asserting the
	// one-batched-query-per-check property.
	AggregateCalls int
}

// NewStubStore creates an empty stub store.
func NewStubStore() *StubStore {
	return &StubStore{tables: make(map[string][]StubRecord)}
}

// Seed adds records to a table.
func (s *StubStore) Seed(table string, recs ...StubRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], recs...)
}

// Aggregate implements Store.
func (s *StubStore) Aggregate(_ context.Context, spec AggregateSpec) ([]AggregateRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AggregateCalls++
	if s.ErrOnQuery != nil {
		return nil, s.ErrOnQuery
	}

	want := make(map[string]bool, len(spec.EntityIDs))
	for _, id := range spec.EntityIDs {
		want[id] = true
	}

	agg := make(map[string]*AggregateRow)
	var order []string
	for _, rec := range s.tables[spec.Source.Table] {
		if rec.Date.Before(types.Midnight(spec.Start)) || rec.Date.After(types.Midnight(spec.End)) {
			continue
		}
		if len(want) > 0 && !want[rec.EntityID] {
			continue
		}
		key := rec.EntityID
		if spec.Source.EntityColumn == "" {
			key = ""
		}
		row, ok := agg[key]
		if !ok {
			row = &AggregateRow{EntityID: key}
			agg[key] = row
			order = append(order, key)
		}
		row.Count++
		if rec.UpdatedAt.After(row.MaxUpdatedAt) {
			row.MaxUpdatedAt = rec.UpdatedAt
		}
		if rec.Hash != "" {
			row.ContentHash = rec.Hash
		}
	}

	out := make([]AggregateRow, 0, len(order))
	for _, key := range order {
		out = append(out, *agg[key])
	}
	return out, nil
}

// DistinctDates implements Store.
func (s *StubStore) DistinctDates(_ context.Context, src Source, start, end time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrOnQuery != nil {
		return nil, s.ErrOnQuery
	}

	seen := make(map[string]bool)
	var dates []time.Time
	for _, rec := range s.tables[src.Table] {
		d := types.Midnight(rec.Date)
		if d.Before(types.Midnight(start)) || d.After(types.Midnight(end)) {
			continue
		}
		key := types.FormatDay(d)
		if !seen[key] {
			seen[key] = true
			dates = append(dates, d)
		}
	}
	sortTimes(dates)
	return dates, nil
}

// EntityDates implements Store.
func (s *StubStore) EntityDates(_ context.Context, src Source, entityID string, start, end time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrOnQuery != nil {
		return nil, s.ErrOnQuery
	}

	seen := make(map[string]bool)
	var dates []time.Time
	for _, rec := range s.tables[src.Table] {
		if rec.EntityID != entityID {
			continue
		}
		d := types.Midnight(rec.Date)
		if d.Before(types.Midnight(start)) || d.After(types.Midnight(end)) {
			continue
		}
		key := types.FormatDay(d)
		if !seen[key] {
			seen[key] = true
			dates = append(dates, d)
		}
	}
	sortTimes(dates)
	return dates, nil
}

// RowCount implements Store.
func (s *StubStore) RowCount(_ context.Context, src Source, asOf time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrOnQuery != nil {
		return 0, s.ErrOnQuery
	}

	var n int64
	day := types.Midnight(asOf)
	for _, rec := range s.tables[src.Table] {
		if types.Midnight(rec.Date).Equal(day) {
			n++
		}
	}
	return n, nil
}

// Close implements Store.
func (s *StubStore) Close() error { return nil }

func sortTimes(ts []time.Time) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}

// Verify StubStore implements the store interface.
var _ Store = (*StubStore)(nil)
