package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hoopline/gatekeeper/cli/config"
	"github.com/hoopline/gatekeeper/cli/render"
	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/types"
)

// StatusRow is one run in the status listing.
type StatusRow struct {
	RunID       string  `json:"run_id"`
	AsOf        string  `json:"as_of"`
	Status      string  `json:"status"`
	Category    string  `json:"category,omitempty"`
	Records     int64   `json:"records"`
	CoveragePct float64 `json:"coverage_pct"`
	Duration    string  `json:"duration"`
	Started     string  `json:"started_at"`
	Backfill    bool    `json:"backfill"`
}

// StatusCommand returns the status command: a read-only view over the run
// ledger.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show recent runs for a stage",
		Flags: append(ReadOnlyFlags(),
			StageFlag,
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum rows to show",
				Value: 20,
			},
		),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if cfg.Ledger.Path == "" {
		return cli.Exit("ledger.path is required", exitConfigError)
	}

	led, err := ledger.OpenSQLite(cfg.Ledger.Path)
	if err != nil {
		return cli.Exit(err.Error(), exitRunFailed)
	}
	defer func() { _ = led.Close() }()

	recs, err := led.History(context.Background(), c.String("stage"), c.Int("limit"))
	if err != nil {
		return cli.Exit(err.Error(), exitRunFailed)
	}

	rows := make([]StatusRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, StatusRow{
			RunID:       rec.RunID,
			AsOf:        types.FormatDay(rec.AsOf),
			Status:      string(rec.Status),
			Category:    string(rec.FailureCategory),
			Records:     rec.RecordsProcessed,
			CoveragePct: rec.CoveragePct,
			Duration:    (time.Duration(rec.DurationSeconds * float64(time.Second))).Round(time.Millisecond).String(),
			Started:     rec.StartedAt.Format(time.RFC3339),
			Backfill:    rec.Backfill,
		})
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	return r.Render(rows)
}
