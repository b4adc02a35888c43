// Package main provides the gatekeeper CLI entrypoint.
//
// gatekeeper validates upstream completeness before a pipeline stage runs,
// gates the run on soft dependencies, and records every attempt in the run
// ledger.
//
// Usage:
//
//	gatekeeper <command> [options]
//
// Exit codes for run and backfill:
//   - 0: success, partial, or deliberately skipped
//   - 1: configuration error
//   - 2: run failed
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hoopline/gatekeeper/cli/cmd"
	"github.com/hoopline/gatekeeper/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "gatekeeper",
		Usage:          "Pipeline dependency and completeness validation",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.BackfillCommand(),
			cmd.ReclassifyCommand(),
			cmd.StatusCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled cli.Exit errors; this branch
		// catches anything that was not wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit so the scheduler can
// distinguish configuration problems from run failures.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
