package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hoopline/gatekeeper/classify"
	"github.com/hoopline/gatekeeper/cli/config"
	"github.com/hoopline/gatekeeper/cli/render"
	"github.com/hoopline/gatekeeper/lifecycle"
	"github.com/hoopline/gatekeeper/log"
	"github.com/hoopline/gatekeeper/types"
)

// Exit codes for run and backfill.
const (
	exitSuccess     = 0
	exitConfigError = 1
	exitRunFailed   = 2
)

// RunResult is the rendered outcome of one run.
type RunResult struct {
	Stage    string `json:"stage"`
	RunID    string `json:"run_id"`
	AsOf     string `json:"as_of"`
	Status   string `json:"status"`
	Category string `json:"category,omitempty"`
	Records  int64  `json:"records"`
	Reason   string `json:"reason,omitempty"`
}

// RunCommand returns the run command: validate and execute one stage for
// one processing date.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Validate and run one pipeline stage for a date",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			StageFlag,
			DateFlag,
			VerboseFlag,
			&cli.BoolFlag{
				Name:  "skip-dependency-check",
				Usage: "Bypass the upstream dependency gate",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail the dependency gate on degraded coverage instead of warning",
			},
			&cli.BoolFlag{
				Name:  "check-all-sources",
				Usage: "Smart skip requires every source unchanged, not just the primary",
			},
			&cli.Float64Flag{
				Name:  "min-coverage",
				Usage: "Override minimum coverage for all upstream rules (0..1)",
				Value: -1,
			},
		},
		Action: func(c *cli.Context) error {
			return executeRun(c, false)
		},
	}
}

// executeRun drives one controller invocation; backfill selects the
// historical-reprocessing mode shared with the backfill command.
func executeRun(c *cli.Context, backfill bool) error {
	asOf, err := parseDate(c.String("date"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	stageName := c.String("stage")
	logger := log.NewLogger(log.RunContext{Stage: stageName, AsOf: asOf, Backfill: backfill})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, stage, err := buildEngine(ctx, cfg, stageName, c.Bool("strict"), logger)
	if err != nil {
		if errors.Is(err, classify.ErrConfiguration) {
			return cli.Exit(err.Error(), exitConfigError)
		}
		return cli.Exit(err.Error(), exitRunFailed)
	}
	defer eng.close()

	opts := lifecycle.RunOptions{
		Backfill:            backfill,
		SkipDependencyCheck: c.Bool("skip-dependency-check"),
		CheckAllSources:     c.Bool("check-all-sources") || cfg.HashStore.CheckAllSources,
	}
	if mc := c.Float64("min-coverage"); mc >= 0 {
		opts.Overrides = make(map[string]float64)
		for _, up := range cfg.Stages[stageName].Upstreams {
			opts.Overrides[up.Stage] = mc
		}
	}

	outcome, err := eng.controller.Run(ctx, stage, asOf, opts)
	if err != nil {
		return cli.Exit(err.Error(), exitRunFailed)
	}

	if c.Bool("verbose") {
		printMetrics(eng)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	result := RunResult{
		Stage:    stageName,
		RunID:    outcome.RunID,
		AsOf:     types.FormatDay(asOf),
		Status:   string(outcome.Status),
		Category: string(outcome.Category),
		Records:  outcome.Records,
		Reason:   outcome.Reason,
	}
	if err := r.Render(result); err != nil {
		return cli.Exit(err.Error(), exitRunFailed)
	}

	if outcome.Status == types.RunFailed {
		return cli.Exit("", exitRunFailed)
	}
	return nil
}

// printMetrics writes the run's metric snapshot to stderr.
func printMetrics(eng *engine) {
	snap := eng.metrics.Snapshot()
	fmt.Fprintf(os.Stderr,
		"runs: started=%d succeeded=%d skipped=%d failed=%d | deps: retries=%d failures=%d | hash skips=%d | signals: published=%d failed=%d | alerts: sent=%d suppressed=%d\n",
		snap.RunsStarted, snap.RunsSucceeded, snap.RunsSkipped, snap.RunsFailed,
		snap.DependencyRetries, snap.DependencyFailures, snap.HashSkips,
		snap.SignalsPublished, snap.SignalFailures,
		snap.AlertsSent, snap.AlertsSuppressed)
}

// parseDate parses YYYY-MM-DD; empty means yesterday (the pipeline runs
// the morning after the games).
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return types.Midnight(time.Now().UTC().AddDate(0, 0, -1)), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}
