package types_test

import (
	"testing"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

func TestDaySequence(t *testing.T) {
	start, _ := types.ParseDay("2026-01-29")
	end, _ := types.ParseDay("2026-02-02")

	days := types.DaySequence(start, end)
	if len(days) != 5 {
		t.Fatalf("expected 5 days, got %d", len(days))
	}
	if types.FormatDay(days[0]) != "2026-01-29" {
		t.Errorf("first day = %s", types.FormatDay(days[0]))
	}
	if types.FormatDay(days[4]) != "2026-02-02" {
		t.Errorf("last day = %s", types.FormatDay(days[4]))
	}
}

func TestDaySequence_EndBeforeStart(t *testing.T) {
	start, _ := types.ParseDay("2026-02-02")
	end, _ := types.ParseDay("2026-02-01")
	if days := types.DaySequence(start, end); days != nil {
		t.Errorf("expected nil, got %d days", len(days))
	}
}

func TestParseDay_Invalid(t *testing.T) {
	if _, err := types.ParseDay("02/01/2026"); err == nil {
		t.Error("expected error for non-canonical layout")
	}
}

func TestDaysSince_IgnoresTimeOfDay(t *testing.T) {
	start, _ := types.ParseDay("2025-10-21")
	later := start.AddDate(0, 0, 30).Add(23 * time.Hour)
	if got := types.DaysSince(start, later); got != 30 {
		t.Errorf("DaysSince = %d, want 30", got)
	}
}

func TestProcessingLock_IsStale(t *testing.T) {
	now := time.Now()
	lock := &types.ProcessingLock{
		LockID:     types.LockKey("player_analytics", now),
		HolderID:   "worker-1",
		AcquiredAt: now.Add(-11 * time.Minute),
		StaleAfter: types.DefaultLockStaleAfter,
	}
	if !lock.IsStale(now) {
		t.Error("lock past its staleness window should be stale")
	}
	lock.AcquiredAt = now.Add(-9 * time.Minute)
	if lock.IsStale(now) {
		t.Error("lock within its staleness window should not be stale")
	}
}

func TestRunRecord_Validate(t *testing.T) {
	asOf, _ := types.ParseDay("2026-02-01")
	rec := &types.RunRecord{
		StageName: "player_analytics",
		RunID:     "run-1",
		AsOf:      asOf,
		Status:    types.RunSuccess,
		StartedAt: time.Now(),
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	failed := *rec
	failed.Status = types.RunFailed
	if err := failed.Validate(); err == nil {
		t.Error("failed record without a category should be rejected")
	}
	failed.FailureCategory = types.CategoryUpstream
	if err := failed.Validate(); err != nil {
		t.Errorf("categorized failed record rejected: %v", err)
	}
}
