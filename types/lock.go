package types

import (
	"fmt"
	"time"
)

// DefaultLockStaleAfter bounds how long a crashed holder can block other
// runs of the same (stage, date).
const DefaultLockStaleAfter = 10 * time.Minute

// LockKey builds the canonical mutual-exclusion key for a (stage, date)
// pair. One active run per key.
func LockKey(stage string, asOf time.Time) string {
	return fmt.Sprintf("%s:%s", stage, FormatDay(asOf))
}

// ProcessingLock is the mutual-exclusion record for one (stage, date).
// Created at run start, deleted at run end; a lock older than StaleAfter
// may be reclaimed by another holder.
type ProcessingLock struct {
	// LockID is the (stage, date) key.
	LockID string `msgpack:"lock_id"`
	// HolderID identifies the process holding the lock.
	HolderID string `msgpack:"holder_id"`
	// AcquiredAt is when the lock was taken.
	AcquiredAt time.Time `msgpack:"acquired_at"`
	// StaleAfter is the staleness window granted at acquisition.
	StaleAfter time.Duration `msgpack:"stale_after"`
}

// IsStale reports whether the lock has outlived its staleness window.
func (l *ProcessingLock) IsStale(now time.Time) bool {
	return now.Sub(l.AcquiredAt) > l.StaleAfter
}
