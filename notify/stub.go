package notify

import (
	"context"
	"sync"
)

// StubNotifier records alerts in memory. For tests.
type StubNotifier struct {
	mu     sync.Mutex
	alerts []Alert

	// ErrOnNotify, if non-nil, is returned by Notify.
	ErrOnNotify error
}

// NewStubNotifier creates an empty stub.
func NewStubNotifier() *StubNotifier {
	return &StubNotifier{}
}

// Notify implements Notifier.
func (s *StubNotifier) Notify(_ context.Context, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrOnNotify != nil {
		return s.ErrOnNotify
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

// Alerts returns the delivered alerts so far.
func (s *StubNotifier) Alerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...)
}

var _ Notifier = (*StubNotifier)(nil)
