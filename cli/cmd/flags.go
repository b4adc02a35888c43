// Package cmd provides CLI commands for the gatekeeper binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags across commands.
var (
	// ConfigFlag points at the YAML config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to gatekeeper.yaml",
		Value:   "gatekeeper.yaml",
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// StageFlag names the pipeline stage to operate on.
	StageFlag = &cli.StringFlag{
		Name:     "stage",
		Usage:    "Pipeline stage name",
		Required: true,
	}

	// DateFlag is the processing date, YYYY-MM-DD.
	DateFlag = &cli.StringFlag{
		Name:  "date",
		Usage: "Processing date (YYYY-MM-DD, default: yesterday)",
	}

	// VerboseFlag prints the metrics snapshot at run end.
	VerboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Print per-run metrics at completion",
	}
)

// ReadOnlyFlags returns the shared flags for commands that only read
// state.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		FormatFlag,
	}
}
