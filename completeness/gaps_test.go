package completeness_test

import (
	"testing"

	"github.com/hoopline/gatekeeper/completeness"
	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/schedule"
	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

func gapChecker(store *warehouse.StubStore) *completeness.Checker {
	return completeness.NewChecker(store, schedule.NewStubProvider(), ledger.NewMemoryLedger(), nil)
}

func dailySource() warehouse.Source {
	return warehouse.Source{Table: "daily_rollups", DateColumn: "rollup_date"}
}

func TestCheckDateRangeCompleteness_ExactGaps(t *testing.T) {
	store := warehouse.NewStubStore()
	for _, d := range []string{"2026-01-01", "2026-01-02", "2026-01-04", "2026-01-06"} {
		store.Seed("daily_rollups", warehouse.StubRecord{Date: day(t, d)})
	}

	report, err := gapChecker(store).CheckDateRangeCompleteness(
		t.Context(), dailySource(), day(t, "2026-01-01"), day(t, "2026-01-06"))
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	if !report.HasGaps || report.GapCount != 2 {
		t.Fatalf("report = %+v, want 2 gaps", report)
	}
	want := []string{"2026-01-03", "2026-01-05"}
	for i, d := range report.MissingDates {
		if types.FormatDay(d) != want[i] {
			t.Errorf("missing[%d] = %s, want %s", i, types.FormatDay(d), want[i])
		}
	}
}

func TestCheckDateRangeCompleteness_EmptyTable(t *testing.T) {
	report, err := gapChecker(warehouse.NewStubStore()).CheckDateRangeCompleteness(
		t.Context(), dailySource(), day(t, "2026-01-01"), day(t, "2026-01-05"))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.GapCount != 5 || report.CoveragePct != 0 {
		t.Errorf("report = %+v, want 5 gaps at 0%% coverage", report)
	}
}

func TestCheckDateRangeCompleteness_FullyPopulated(t *testing.T) {
	store := warehouse.NewStubStore()
	for _, d := range types.DaySequence(day(t, "2026-01-01"), day(t, "2026-01-05")) {
		store.Seed("daily_rollups", warehouse.StubRecord{Date: d})
	}

	report, err := gapChecker(store).CheckDateRangeCompleteness(
		t.Context(), dailySource(), day(t, "2026-01-01"), day(t, "2026-01-05"))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.HasGaps || report.GapCount != 0 || report.CoveragePct != 100 {
		t.Errorf("report = %+v, want no gaps at 100%% coverage", report)
	}
}
