package hashtrack

import (
	"context"
	"fmt"
	"time"

	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/types"
)

// HashStore persists the per-entity source hash sets between runs.
type HashStore interface {
	// Get returns the most recent hash records for an entity key, empty
	// when the key has never been recorded.
	Get(ctx context.Context, entityKey string) ([]types.SourceHashRecord, error)

	// Put replaces the hash set for an entity key.
	Put(ctx context.Context, entityKey string, recs []types.SourceHashRecord) error
}

// Tracker decides whether a run may skip recomputation because its
// source data is unchanged since the last recorded run.
type Tracker struct {
	store         HashStore
	primaryPrefix string
	logger        *log.Logger
	now           func() time.Time
}

// NewTracker creates a tracker. primaryPrefix names the source compared
// in lenient (primary-only) mode.
func NewTracker(store HashStore, primaryPrefix string, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Nop()
	}
	return &Tracker{store: store, primaryPrefix: primaryPrefix, logger: logger, now: time.Now}
}

// WithNow overrides the clock. For tests.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// ShouldSkip compares current source hashes against the persisted set.
//
// No persisted set means never skip (first run). With checkAllSources
// false only the primary source is compared; with true every source in
// either the persisted or the current set must be unchanged. An empty
// current or previous hash for a checked source reads as changed, so a
// newly added source blocks the skip until it has been recorded once.
// A store failure disables the skip and returns no error: the tracker
// must never block processing.
func (t *Tracker) ShouldSkip(ctx context.Context, entityKey string, current map[string]string, checkAllSources bool) (bool, string) {
	previous, err := t.store.Get(ctx, entityKey)
	if err != nil {
		t.logger.Warn("hash lookup failed, skip disabled", map[string]any{
			"entity_key": entityKey,
			"error":      err.Error(),
		})
		return false, "hash store unavailable"
	}
	if len(previous) == 0 {
		return false, "no previous hashes recorded"
	}

	prevByPrefix := make(map[string]string, len(previous))
	for _, rec := range previous {
		prevByPrefix[rec.SourcePrefix] = rec.ContentHash
	}

	prefixes := []string{t.primaryPrefix}
	if checkAllSources {
		prefixes = prefixes[:0]
		for prefix := range prevByPrefix {
			prefixes = append(prefixes, prefix)
		}
		for prefix := range current {
			if _, ok := prevByPrefix[prefix]; !ok {
				prefixes = append(prefixes, prefix)
			}
		}
	}

	for _, prefix := range prefixes {
		prev := prevByPrefix[prefix]
		cur := current[prefix]
		if prev == "" || cur == "" {
			// Unknown hash reads as changed.
			return false, fmt.Sprintf("source %s has no comparable hash", prefix)
		}
		if prev != cur {
			return false, fmt.Sprintf("source %s changed", prefix)
		}
	}
	if checkAllSources {
		return true, "all sources unchanged"
	}
	return true, fmt.Sprintf("primary source %s unchanged", t.primaryPrefix)
}

// Record persists the hash set consumed by a completed run. Failures are
// logged and swallowed for the same reason ShouldSkip swallows them.
func (t *Tracker) Record(ctx context.Context, entityKey string, hashes map[string]string) {
	recs := make([]types.SourceHashRecord, 0, len(hashes))
	now := t.now()
	for prefix, hash := range hashes {
		recs = append(recs, types.SourceHashRecord{
			SourcePrefix: prefix,
			ContentHash:  hash,
			LastUpdated:  now,
		})
	}
	if err := t.store.Put(ctx, entityKey, recs); err != nil {
		t.logger.Warn("hash record failed", map[string]any{
			"entity_key": entityKey,
			"error":      err.Error(),
		})
	}
}
