package locker

import (
	"context"
	"sync"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// MemoryLocker implements Locker in process memory. For tests and
// single-process deployments without a coordination service.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*types.ProcessingLock
	now   func() time.Time
}

// NewMemoryLocker creates an empty in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]*types.ProcessingLock),
		now:   time.Now,
	}
}

// WithNow overrides the clock. For tests.
func (l *MemoryLocker) WithNow(now func() time.Time) *MemoryLocker {
	l.now = now
	return l
}

// TryAcquire implements Locker. The check and the write happen under one
// mutex hold, mirroring the conditional-write semantics of the real
// coordination service.
func (l *MemoryLocker) TryAcquire(_ context.Context, key, holderID string, staleAfter time.Duration) (*types.ProcessingLock, bool, error) {
	if staleAfter <= 0 {
		staleAfter = types.DefaultLockStaleAfter
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.locks[key]; ok && !current.IsStale(l.now()) {
		cp := *current
		return &cp, false, nil
	}
	lock := &types.ProcessingLock{
		LockID:     key,
		HolderID:   holderID,
		AcquiredAt: l.now().UTC(),
		StaleAfter: staleAfter,
	}
	l.locks[key] = lock
	cp := *lock
	return &cp, true, nil
}

// Release implements Locker.
func (l *MemoryLocker) Release(_ context.Context, key, holderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.locks[key]
	if !ok || current.HolderID != holderID {
		return ErrNotHeld
	}
	delete(l.locks, key)
	return nil
}

// Refresh implements Locker by restarting the staleness window.
func (l *MemoryLocker) Refresh(_ context.Context, key, holderID string, staleAfter time.Duration) error {
	if staleAfter <= 0 {
		staleAfter = types.DefaultLockStaleAfter
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.locks[key]
	if !ok || current.HolderID != holderID {
		return ErrNotHeld
	}
	current.AcquiredAt = l.now().UTC()
	current.StaleAfter = staleAfter
	return nil
}

// Current returns the lock for key, or nil when unlocked.
func (l *MemoryLocker) Current(key string) *types.ProcessingLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lock, ok := l.locks[key]; ok {
		cp := *lock
		return &cp
	}
	return nil
}

var _ Locker = (*MemoryLocker)(nil)
