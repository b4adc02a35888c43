// Package heartbeat keeps a processing lock alive during long phases.
//
// The beacon periodically refreshes the lock's staleness window so an
// external stale-run detector can tell a slow run from a dead one. A
// stuck run stops beating and its lock becomes reclaimable on its own.
package heartbeat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hoopline/gatekeeper/locker"
	"github.com/hoopline/gatekeeper/log"
)

// DefaultInterval is how often the beacon refreshes. A third of the
// default staleness window leaves two missed beats of slack.
const DefaultInterval = 200 * time.Second

// Beacon refreshes one held lock on a fixed interval.
type Beacon struct {
	locks      locker.Locker
	key        string
	holderID   string
	staleAfter time.Duration
	interval   time.Duration
	logger     *log.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a beacon for a lock the caller already holds.
func New(locks locker.Locker, key, holderID string, staleAfter time.Duration, logger *log.Logger) *Beacon {
	if logger == nil {
		logger = log.Nop()
	}
	return &Beacon{
		locks:      locks,
		key:        key,
		holderID:   holderID,
		staleAfter: staleAfter,
		interval:   DefaultInterval,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// WithInterval overrides the beat interval. For tests.
func (b *Beacon) WithInterval(interval time.Duration) *Beacon {
	b.interval = interval
	return b
}

// Start begins beating in a goroutine until Stop is called or the
// context ends. Losing the lock stops the beacon; the run itself finds
// out at release time.
func (b *Beacon) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stop:
				return
			case <-ticker.C:
				err := b.locks.Refresh(ctx, b.key, b.holderID, b.staleAfter)
				if errors.Is(err, locker.ErrNotHeld) {
					b.logger.Warn("heartbeat lost the lock", map[string]any{
						"lock_key": b.key,
						"holder":   b.holderID,
					})
					return
				}
				if err != nil {
					b.logger.Warn("heartbeat refresh failed", map[string]any{
						"lock_key": b.key,
						"error":    err.Error(),
					})
				}
			}
		}
	}()
}

// Stop halts the beacon and waits for the loop to exit. Safe to call
// more than once.
func (b *Beacon) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
	<-b.done
}
