package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hoopline/gatekeeper/classify"
	"github.com/hoopline/gatekeeper/cli/config"
	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/lifecycle"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

var testDay = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

// seedWarehouse builds a small but realistic warehouse: one season, one
// team with seven January games, one rostered player with complete box
// scores and raw logs.
func seedWarehouse(t *testing.T, path string) {
	t.Helper()
	store, err := warehouse.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open warehouse: %v", err)
	}
	defer func() { _ = store.Close() }()

	db := store.DB()
	stmts := []string{
		`CREATE TABLE seasons (label TEXT, start_date TEXT, end_date TEXT)`,
		`CREATE TABLE schedule (team_id TEXT, game_date TEXT)`,
		`CREATE TABLE roster_log (player_id TEXT, team_id TEXT, observed_date TEXT)`,
		`CREATE TABLE box_scores (player_id TEXT, game_date TEXT, points INTEGER, updated_at TEXT)`,
		`CREATE TABLE raw_game_logs (player_id TEXT, game_date TEXT, dnp INTEGER)`,
		`INSERT INTO seasons VALUES ('2025-26', '2025-10-20', '2026-06-20')`,
		`INSERT INTO roster_log VALUES ('p1', 'BOS', '2025-10-01')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	for i := 0; i < 7; i++ {
		day := types.FormatDay(time.Date(2026, 1, 2+2*i, 0, 0, 0, 0, time.UTC))
		if _, err := db.Exec(`INSERT INTO schedule VALUES ('BOS', ?)`, day); err != nil {
			t.Fatalf("seed schedule: %v", err)
		}
		if _, err := db.Exec(`INSERT INTO box_scores VALUES ('p1', ?, 20, ?)`, day, day+"T08:00:00Z"); err != nil {
			t.Fatalf("seed box scores: %v", err)
		}
		if _, err := db.Exec(`INSERT INTO raw_game_logs VALUES ('p1', ?, 0)`, day); err != nil {
			t.Fatalf("seed raw logs: %v", err)
		}
	}
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	warehousePath := filepath.Join(dir, "warehouse.db")
	ledgerPath := filepath.Join(dir, "ledger.db")
	seedWarehouse(t, warehousePath)

	// Upstream box_scores stage has already run at full coverage.
	led, err := ledger.OpenSQLite(ledgerPath)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	err = led.Append(context.Background(), &types.RunRecord{
		StageName:        "box_scores",
		RunID:            "upstream-1",
		AsOf:             testDay,
		Status:           types.RunSuccess,
		StartedAt:        testDay.Add(2 * time.Hour),
		RecordsProcessed: 7,
		CoveragePct:      100,
	})
	if cErr := led.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		t.Fatalf("seed upstream run: %v", err)
	}

	cfg := &config.Config{
		Warehouse: config.WarehouseConfig{Path: warehousePath},
		Ledger:    config.LedgerConfig{Path: ledgerPath},
		HashStore: config.HashStoreConfig{
			Path:          filepath.Join(dir, "hashes.db"),
			PrimarySource: "box_scores",
		},
		Window: config.WindowConfig{Sizes: []int{5}, ComputeThreshold: 0.7},
		Stages: map[string]config.StageConfig{
			"rolling_averages": {
				Source: config.SourceConfig{
					Name:          "box_scores",
					Table:         "box_scores",
					DateColumn:    "game_date",
					EntityColumn:  "player_id",
					UpdatedColumn: "updated_at",
				},
				Upstreams: []config.UpstreamConfig{
					{Stage: "box_scores", Hard: true, MinCoverage: 0.9},
				},
				RawFeed:        true,
				OutputLocation: "file://" + dir,
			},
		},
		Snapshot: config.SnapshotConfig{Backend: "fs", Path: filepath.Join(dir, "reports")},
	}
	return cfg, dir
}

func TestBuildEngine_RunEndToEnd(t *testing.T) {
	cfg, dir := testConfig(t)
	ctx := context.Background()

	eng, stage, err := buildEngine(ctx, cfg, "rolling_averages", false, log.Nop())
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	defer eng.close()

	outcome, err := eng.controller.Run(ctx, stage, testDay, lifecycle.RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.Status != types.RunSuccess {
		t.Fatalf("status = %s (category %s, reason %q), want success",
			outcome.Status, outcome.Category, outcome.Reason)
	}
	if outcome.Records != 1 {
		t.Errorf("records = %d, want 1 computable player", outcome.Records)
	}

	latest, err := eng.ledger.Latest(ctx, "rolling_averages", testDay)
	if err != nil || latest == nil {
		t.Fatalf("latest run record: %v, %v", latest, err)
	}
	if latest.Status != types.RunSuccess || latest.CoveragePct != 100 {
		t.Errorf("record = %+v", latest)
	}

	// The report snapshot landed on disk.
	reportDir := filepath.Join(dir, "reports")
	found := false
	_ = filepath.Walk(reportDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && filepath.Base(path) == "report.json" {
			found = true
		}
		return nil
	})
	if !found {
		t.Errorf("no report.json under %s", reportDir)
	}
}

func TestBuildEngine_SecondRunSkipsOnUnchangedHash(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.HashStore.CheckAllSources = true
	ctx := context.Background()

	eng, stage, err := buildEngine(ctx, cfg, "rolling_averages", false, log.Nop())
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	defer eng.close()

	first, err := eng.controller.Run(ctx, stage, testDay, lifecycle.RunOptions{CheckAllSources: true})
	if err != nil || first.Status != types.RunSuccess {
		t.Fatalf("first run = %+v, err %v", first, err)
	}

	second, err := eng.controller.Run(ctx, stage, testDay, lifecycle.RunOptions{CheckAllSources: true})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Status != types.RunSkipped {
		t.Fatalf("second run = %+v, want hash skip", second)
	}
}

func TestBuildEngine_UnknownStage(t *testing.T) {
	cfg, _ := testConfig(t)
	_, _, err := buildEngine(context.Background(), cfg, "nonexistent", false, log.Nop())
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
	if !isConfigErr(err) {
		t.Errorf("error %v is not a configuration error", err)
	}
}

func TestBuildEngine_MissingWarehouse(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.Warehouse.Path = ""
	_, _, err := buildEngine(context.Background(), cfg, "rolling_averages", false, log.Nop())
	if err == nil || !isConfigErr(err) {
		t.Errorf("err = %v, want configuration error", err)
	}
}

func isConfigErr(err error) bool {
	return classify.Categorize(err) == types.CategoryConfiguration
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2026-01-15")
	if err != nil || !d.Equal(testDay) {
		t.Errorf("parseDate = %v, %v", d, err)
	}
	if _, err := parseDate("01/15/2026"); err == nil {
		t.Error("expected error for slash date")
	}
	d, err = parseDate("")
	if err != nil {
		t.Fatalf("empty date: %v", err)
	}
	want := types.Midnight(time.Now().UTC().AddDate(0, 0, -1))
	if !d.Equal(want) {
		t.Errorf("default date = %v, want %v", d, want)
	}
}

func TestSourceConfigValidation(t *testing.T) {
	cfg, _ := testConfig(t)
	sc := cfg.Stages["rolling_averages"]
	sc.Source.Table = "box scores; drop"
	cfg.Stages["rolling_averages"] = sc
	_, _, err := buildEngine(context.Background(), cfg, "rolling_averages", false, log.Nop())
	if err == nil {
		t.Fatal("expected error for invalid table identifier")
	}
	if fmt.Sprint(err) == "" || !isConfigErr(err) {
		t.Errorf("err = %v, want configuration error", err)
	}
}
