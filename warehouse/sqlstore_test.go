package warehouse_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

func openTestStore(t *testing.T) *warehouse.SQLStore {
	t.Helper()
	store, err := warehouse.OpenSQLite(filepath.Join(t.TempDir(), "wh.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	schema := `CREATE TABLE player_box_scores (
		player_id TEXT NOT NULL,
		game_date TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		points INTEGER
	)`
	if _, err := store.DB().Exec(schema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return store
}

func seedBox(t *testing.T, store *warehouse.SQLStore, player, day string) {
	t.Helper()
	_, err := store.DB().Exec(
		"INSERT INTO player_box_scores (player_id, game_date, updated_at, points) VALUES (?, ?, ?, 20)",
		player, day, day+"T06:00:00Z",
	)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func boxSource() warehouse.Source {
	return warehouse.Source{
		Table:         "player_box_scores",
		DateColumn:    "game_date",
		EntityColumn:  "player_id",
		UpdatedColumn: "updated_at",
	}
}

func TestSQLStore_Aggregate_BatchesEntities(t *testing.T) {
	store := openTestStore(t)
	for _, day := range []string{"2026-01-10", "2026-01-12", "2026-01-14"} {
		seedBox(t, store, "p1", day)
	}
	seedBox(t, store, "p2", "2026-01-12")

	start, _ := types.ParseDay("2026-01-01")
	end, _ := types.ParseDay("2026-01-31")
	rows, err := store.Aggregate(t.Context(), warehouse.AggregateSpec{
		Source:    boxSource(),
		Start:     start,
		End:       end,
		EntityIDs: []string{"p1", "p2", "p3"},
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	byEntity := make(map[string]warehouse.AggregateRow)
	for _, r := range rows {
		byEntity[r.EntityID] = r
	}
	if byEntity["p1"].Count != 3 {
		t.Errorf("p1 count = %d, want 3", byEntity["p1"].Count)
	}
	if byEntity["p2"].Count != 1 {
		t.Errorf("p2 count = %d, want 1", byEntity["p2"].Count)
	}
	// Entities with no rows are absent, not zero rows.
	if _, ok := byEntity["p3"]; ok {
		t.Error("p3 should be absent from aggregate result")
	}
	if byEntity["p1"].ContentHash == "" {
		t.Error("expected a content hash for p1")
	}
	wantUpdated := time.Date(2026, 1, 14, 6, 0, 0, 0, time.UTC)
	if !byEntity["p1"].MaxUpdatedAt.Equal(wantUpdated) {
		t.Errorf("p1 max updated = %v, want %v", byEntity["p1"].MaxUpdatedAt, wantUpdated)
	}
}

func TestSQLStore_DistinctDates(t *testing.T) {
	store := openTestStore(t)
	for _, day := range []string{"2026-01-10", "2026-01-10", "2026-01-12"} {
		seedBox(t, store, "p1", day)
	}

	start, _ := types.ParseDay("2026-01-01")
	end, _ := types.ParseDay("2026-01-31")
	dates, err := store.DistinctDates(t.Context(), boxSource(), start, end)
	if err != nil {
		t.Fatalf("distinct dates: %v", err)
	}
	if len(dates) != 2 {
		t.Fatalf("expected 2 distinct dates, got %d", len(dates))
	}
	if types.FormatDay(dates[0]) != "2026-01-10" || types.FormatDay(dates[1]) != "2026-01-12" {
		t.Errorf("dates = %v", dates)
	}
}

func TestSQLStore_RowCount(t *testing.T) {
	store := openTestStore(t)
	seedBox(t, store, "p1", "2026-01-10")
	seedBox(t, store, "p2", "2026-01-10")

	asOf, _ := types.ParseDay("2026-01-10")
	n, err := store.RowCount(t.Context(), boxSource(), asOf)
	if err != nil {
		t.Fatalf("row count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	empty, _ := types.ParseDay("2026-01-11")
	if n, _ := store.RowCount(t.Context(), boxSource(), empty); n != 0 {
		t.Errorf("count for empty day = %d, want 0", n)
	}
}

func TestSQLStore_RejectsBadIdentifiers(t *testing.T) {
	store := openTestStore(t)
	src := boxSource()
	src.Table = "player_box_scores; DROP TABLE runs"
	if _, err := store.RowCount(t.Context(), src, time.Now()); err == nil {
		t.Error("expected identifier validation error")
	}
}
