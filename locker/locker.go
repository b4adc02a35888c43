// Package locker provides (stage, date) mutual exclusion.
//
// Exactly one run may hold the lock for a key at a time; a lock whose
// holder crashed becomes reclaimable after its staleness window. Acquire
// must be a conditional write (create-if-absent or replace-if-stale) so
// two racing runs cannot both win a check-then-act.
package locker

import (
	"context"
	"errors"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// ErrNotHeld is returned by Release and Refresh when the caller is not
// the current holder.
var ErrNotHeld = errors.New("locker: lock not held by this holder")

// Locker is the coordination-service interface for processing locks.
type Locker interface {
	// TryAcquire attempts a conditional create of the lock for key. It
	// returns (lock, true) on success and (current, false) when another
	// holder owns a non-stale lock. A stale lock is reclaimed.
	TryAcquire(ctx context.Context, key, holderID string, staleAfter time.Duration) (*types.ProcessingLock, bool, error)

	// Release deletes the lock if and only if holderID still owns it.
	Release(ctx context.Context, key, holderID string) error

	// Refresh extends the staleness window of a held lock. Used by the
	// heartbeat during long-running phases.
	Refresh(ctx context.Context, key, holderID string, staleAfter time.Duration) error
}
