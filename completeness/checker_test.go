package completeness_test

import (
	"testing"
	"time"

	"github.com/hoopline/gatekeeper/completeness"
	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/schedule"
	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := types.ParseDay(s)
	if err != nil {
		t.Fatalf("bad day %s: %v", s, err)
	}
	return d
}

func boxSource() warehouse.Source {
	return warehouse.Source{
		Table:         "player_box_scores",
		DateColumn:    "game_date",
		EntityColumn:  "player_id",
		UpdatedColumn: "updated_at",
	}
}

// fixture: team BOS played 4 games in January; p1 has 3 box scores, p2 none.
func fixture(t *testing.T) (*completeness.Checker, *warehouse.StubStore, *schedule.StubProvider) {
	t.Helper()
	store := warehouse.NewStubStore()
	sched := schedule.NewStubProvider()
	sched.AddGames("BOS", "2026-01-05", "2026-01-08", "2026-01-11", "2026-01-14")
	sched.Teams["p1"] = "BOS"
	sched.Teams["p2"] = "BOS"
	sched.Season = schedule.Season{Label: "2025-26", Start: day(t, "2025-10-21"), End: day(t, "2026-04-12")}

	for _, d := range []string{"2026-01-05", "2026-01-08", "2026-01-11"} {
		store.Seed("player_box_scores", warehouse.StubRecord{
			EntityID:  "p1",
			Date:      day(t, d),
			UpdatedAt: day(t, d).Add(6 * time.Hour),
		})
	}

	checker := completeness.NewChecker(store, sched, ledger.NewMemoryLedger(), nil)
	return checker, store, sched
}

func TestCheckCompleteness_PlayersInheritTeamSchedule(t *testing.T) {
	checker, store, _ := fixture(t)

	results, err := checker.CheckCompleteness(t.Context(), completeness.Request{
		EntityIDs:  []string{"p1", "p2"},
		EntityType: types.EntityPlayer,
		AsOf:       day(t, "2026-01-15"),
		Source:     boxSource(),
		Lookback:   4,
		WindowType: completeness.WindowGames,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	p1 := results["p1"]
	if p1.ExpectedCount != 4 || p1.ActualCount != 3 {
		t.Errorf("p1 = %d/%d, want 3/4", p1.ActualCount, p1.ExpectedCount)
	}
	if p1.CompletenessPct != 75 {
		t.Errorf("p1 pct = %v, want 75", p1.CompletenessPct)
	}
	if p1.IsComplete || p1.IsProductionReady {
		t.Errorf("p1 flags = complete:%v ready:%v", p1.IsComplete, p1.IsProductionReady)
	}

	// Entirely absent from the source: actual 0, not an error.
	p2 := results["p2"]
	if p2.ExpectedCount != 4 || p2.ActualCount != 0 || p2.CompletenessPct != 0 {
		t.Errorf("p2 = %+v", p2)
	}

	// One batched aggregate for the whole entity set.
	if store.AggregateCalls != 1 {
		t.Errorf("aggregate calls = %d, want 1", store.AggregateCalls)
	}
}

func TestCheckCompleteness_NoScheduleMeansZeroExpected(t *testing.T) {
	checker, _, sched := fixture(t)
	sched.AddGames("MIA") // exists but no games

	results, err := checker.CheckCompleteness(t.Context(), completeness.Request{
		EntityIDs:  []string{"MIA"},
		EntityType: types.EntityTeam,
		AsOf:       day(t, "2026-01-15"),
		Source:     boxSource(),
		Lookback:   10,
		WindowType: completeness.WindowGames,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	r := results["MIA"]
	if r.ExpectedCount != 0 || r.CompletenessPct != 0 {
		t.Errorf("expected=0 should give pct 0, got %+v", r)
	}
}

func TestCheckCompleteness_UnrosteredPlayerDegradesToZeroExpected(t *testing.T) {
	checker, _, _ := fixture(t)

	results, err := checker.CheckCompleteness(t.Context(), completeness.Request{
		EntityIDs:  []string{"ghost"},
		EntityType: types.EntityPlayer,
		AsOf:       day(t, "2026-01-15"),
		Source:     boxSource(),
		Lookback:   4,
		WindowType: completeness.WindowGames,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if results["ghost"].ExpectedCount != 0 {
		t.Errorf("unrostered player expected = %d, want 0", results["ghost"].ExpectedCount)
	}
}

func TestCheckCompleteness_DaysWindow(t *testing.T) {
	checker, _, _ := fixture(t)

	// Trailing 7 days from Jan 15 covers the Jan 8, 11, 14 games.
	results, err := checker.CheckCompleteness(t.Context(), completeness.Request{
		EntityIDs:  []string{"p1"},
		EntityType: types.EntityPlayer,
		AsOf:       day(t, "2026-01-15"),
		Source:     boxSource(),
		Lookback:   7,
		WindowType: completeness.WindowDays,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if results["p1"].ExpectedCount != 3 {
		t.Errorf("expected = %d, want 3", results["p1"].ExpectedCount)
	}
}

func TestIsBootstrapMode(t *testing.T) {
	seasonStart := time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		asOf time.Time
		want bool
	}{
		{"day 0", seasonStart, true},
		{"day 29", seasonStart.AddDate(0, 0, 29), true},
		{"day 30", seasonStart.AddDate(0, 0, 30), false},
		{"before season", seasonStart.AddDate(0, 0, -1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := completeness.IsBootstrapMode(tt.asOf, seasonStart, 30); got != tt.want {
				t.Errorf("IsBootstrapMode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSeasonBoundary(t *testing.T) {
	checker, _, _ := fixture(t)

	tests := []struct {
		name string
		asOf string
		want bool
	}{
		{"opening week", "2025-10-25", true},
		{"midseason", "2026-01-15", false},
		{"final weeks", "2026-04-01", true},
		{"offseason", "2026-07-01", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.IsSeasonBoundary(t.Context(), day(t, tt.asOf))
			if err != nil {
				t.Fatalf("boundary: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsSeasonBoundary(%s) = %v, want %v", tt.asOf, got, tt.want)
			}
		})
	}
}

func TestCheckUpstreamProcessorStatus(t *testing.T) {
	store := warehouse.NewStubStore()
	sched := schedule.NewStubProvider()
	runs := ledger.NewMemoryLedger()
	checker := completeness.NewChecker(store, sched, runs, nil)

	asOf := day(t, "2026-02-01")

	// No run record at all.
	status, err := checker.CheckUpstreamProcessorStatus(t.Context(), "raw_ingest", asOf)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SafeToProcess {
		t.Error("missing run record must not be safe to process")
	}

	rec := &types.RunRecord{
		StageName: "raw_ingest", RunID: "r1", AsOf: asOf,
		Status: types.RunSuccess, StartedAt: time.Now(),
	}
	if err := runs.Append(t.Context(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	status, err = checker.CheckUpstreamProcessorStatus(t.Context(), "raw_ingest", asOf)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Succeeded || !status.SafeToProcess {
		t.Errorf("status = %+v, want succeeded and safe", status)
	}
}

func TestCalculateBackfillProgress(t *testing.T) {
	seasonStart := time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		day  int
		avg  float64
		want types.AlertLevel
	}{
		{"early days anything goes", 5, 0, types.AlertOK},
		{"day 12 on pace", 12, 35, types.AlertOK},
		{"day 12 slightly behind", 12, 22, types.AlertInfo},
		{"day 25 well behind", 25, 55, types.AlertWarning},
		{"day 40 critically behind", 40, 20, types.AlertCritical},
		{"day 40 on pace", 40, 96, types.AlertOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := completeness.CalculateBackfillProgress(seasonStart.AddDate(0, 0, tt.day), seasonStart, tt.avg)
			if got != tt.want {
				t.Errorf("level = %s, want %s", got, tt.want)
			}
		})
	}
}
