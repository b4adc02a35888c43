package adapter

import (
	"context"
	"sync"
)

// StubAdapter records published events in memory. For tests.
type StubAdapter struct {
	mu     sync.Mutex
	events []StageCompletedEvent

	// ErrOnPublish, if non-nil, is returned by Publish.
	ErrOnPublish error
}

// NewStubAdapter creates an empty stub.
func NewStubAdapter() *StubAdapter {
	return &StubAdapter{}
}

// Publish implements Adapter.
func (s *StubAdapter) Publish(_ context.Context, event *StageCompletedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrOnPublish != nil {
		return s.ErrOnPublish
	}
	s.events = append(s.events, *event)
	return nil
}

// Close implements Adapter.
func (s *StubAdapter) Close() error { return nil }

// Events returns the published events so far.
func (s *StubAdapter) Events() []StageCompletedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StageCompletedEvent(nil), s.events...)
}

var _ Adapter = (*StubAdapter)(nil)
