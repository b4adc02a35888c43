package hashtrack

import (
	"context"
	"sync"

	"github.com/hoopline/gatekeeper/types"
)

// StubHashStore is an in-memory HashStore for tests.
type StubHashStore struct {
	mu   sync.Mutex
	recs map[string][]types.SourceHashRecord

	// ErrOnGet and ErrOnPut, if non-nil, are returned by the matching
	// method.
	ErrOnGet error
	ErrOnPut error
}

// NewStubHashStore creates an empty stub store.
func NewStubHashStore() *StubHashStore {
	return &StubHashStore{recs: make(map[string][]types.SourceHashRecord)}
}

// Get implements HashStore.
func (s *StubHashStore) Get(_ context.Context, entityKey string) ([]types.SourceHashRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrOnGet != nil {
		return nil, s.ErrOnGet
	}
	return append([]types.SourceHashRecord(nil), s.recs[entityKey]...), nil
}

// Put implements HashStore.
func (s *StubHashStore) Put(_ context.Context, entityKey string, recs []types.SourceHashRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrOnPut != nil {
		return s.ErrOnPut
	}
	s.recs[entityKey] = append([]types.SourceHashRecord(nil), recs...)
	return nil
}

var _ HashStore = (*StubHashStore)(nil)
