package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hoopline/gatekeeper/classify"
	"github.com/hoopline/gatekeeper/cli/config"
	"github.com/hoopline/gatekeeper/cli/render"
	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/rawfeed"
	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

// ReclassifyResult is the rendered outcome of a reclassification pass.
type ReclassifyResult struct {
	Stage   string `json:"stage"`
	AsOf    string `json:"as_of"`
	Updated int    `json:"updated"`
}

// ReclassifyCommand returns the reclassify command: backfill fine-grained
// failure types onto ledger records written before raw-feed data arrived.
func ReclassifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "reclassify",
		Usage: "Re-run failure classification for a stage and date",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			StageFlag,
			DateFlag,
		},
		Action: reclassifyAction,
	}
}

func reclassifyAction(c *cli.Context) error {
	asOf, err := parseDate(c.String("date"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if cfg.Warehouse.Path == "" || cfg.Ledger.Path == "" {
		return cli.Exit("warehouse.path and ledger.path are required", exitConfigError)
	}

	stageName := c.String("stage")
	logger := log.NewLogger(log.RunContext{Stage: stageName, AsOf: asOf})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := warehouse.OpenSQLite(cfg.Warehouse.Path)
	if err != nil {
		return cli.Exit(err.Error(), exitRunFailed)
	}
	defer func() { _ = store.Close() }()

	led, err := ledger.OpenSQLite(cfg.Ledger.Path)
	if err != nil {
		return cli.Exit(err.Error(), exitRunFailed)
	}
	defer func() { _ = led.Close() }()

	classifier := classify.NewClassifier(rawfeed.NewSQLSource(store.DB()), logger)
	updated, err := classifier.Reclassify(ctx, led, stageName, asOf)
	if err != nil {
		return cli.Exit(err.Error(), exitRunFailed)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	return r.Render(ReclassifyResult{
		Stage:   stageName,
		AsOf:    types.FormatDay(asOf),
		Updated: updated,
	})
}
