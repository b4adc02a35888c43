package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// MemoryLedger is an in-memory implementation of both ledgers for tests.
type MemoryLedger struct {
	mu       sync.Mutex
	runs     []types.RunRecord
	failures map[string][]types.FailureRecord // keyed by stage|day

	// ErrOnAppend, if non-nil, is returned by Append.
	ErrOnAppend error
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{failures: make(map[string][]types.FailureRecord)}
}

func failureKey(stage string, asOf time.Time) string {
	return stage + "|" + types.FormatDay(asOf)
}

// Append implements RunLedger.
func (m *MemoryLedger) Append(_ context.Context, rec *types.RunRecord) error {
	if m.ErrOnAppend != nil {
		return m.ErrOnAppend
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *rec)
	return nil
}

// Latest implements RunLedger.
func (m *MemoryLedger) Latest(_ context.Context, stage string, asOf time.Time) (*types.RunRecord, error) {
	return m.latest(stage, asOf, false)
}

// LatestCompleted implements RunLedger.
func (m *MemoryLedger) LatestCompleted(_ context.Context, stage string, asOf time.Time) (*types.RunRecord, error) {
	return m.latest(stage, asOf, true)
}

func (m *MemoryLedger) latest(stage string, asOf time.Time, completedOnly bool) (*types.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := types.FormatDay(asOf)
	var latest *types.RunRecord
	for i := range m.runs {
		rec := &m.runs[i]
		if rec.StageName != stage || types.FormatDay(rec.AsOf) != day {
			continue
		}
		if completedOnly && rec.Status != types.RunSuccess && rec.Status != types.RunPartial {
			continue
		}
		if latest == nil || rec.StartedAt.After(latest.StartedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

// History implements RunLedger.
func (m *MemoryLedger) History(_ context.Context, stage string, limit int) ([]types.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.RunRecord
	for _, rec := range m.runs {
		if rec.StageName == stage {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Runs returns a copy of every appended run record, for test assertions.
func (m *MemoryLedger) Runs() []types.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.RunRecord, len(m.runs))
	copy(out, m.runs)
	return out
}

// Replace implements FailureLedger.
func (m *MemoryLedger) Replace(_ context.Context, stage string, asOf time.Time, recs []types.FailureRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]types.FailureRecord, len(recs))
	copy(cp, recs)
	m.failures[failureKey(stage, asOf)] = cp
	return nil
}

// Unclassified implements FailureLedger.
func (m *MemoryLedger) Unclassified(_ context.Context, stage string, asOf time.Time) ([]types.FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.FailureRecord
	for _, rec := range m.failures[failureKey(stage, asOf)] {
		if rec.Category == types.EntityIncompleteData && rec.FailureType == "" {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SetFailureType implements FailureLedger.
func (m *MemoryLedger) SetFailureType(_ context.Context, stage string, asOf time.Time, entityID string, ft types.FailureType, correctable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.failures[failureKey(stage, asOf)]
	for i := range recs {
		if recs[i].EntityID == entityID {
			recs[i].FailureType = ft
			recs[i].CanRetry = correctable
		}
	}
	return nil
}

// Failures returns the stored failure records for (stage, asOf).
func (m *MemoryLedger) Failures(stage string, asOf time.Time) []types.FailureRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.failures[failureKey(stage, asOf)]
	out := make([]types.FailureRecord, len(recs))
	copy(out, recs)
	return out
}

// Verify MemoryLedger implements both ledger interfaces.
var (
	_ RunLedger     = (*MemoryLedger)(nil)
	_ FailureLedger = (*MemoryLedger)(nil)
)
