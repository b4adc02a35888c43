// Package snapshot archives run reports for later audit.
//
// A snapshot is the JSON record of one run: the run record, per-entity
// coverage, dependency decisions, and failure set. Publishing is
// best-effort; a run never fails because its snapshot did not land.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// Report is the archived record of one run.
type Report struct {
	Run       types.RunRecord                 `json:"run"`
	Coverage  map[string]types.CoverageResult `json:"coverage,omitempty"`
	Depends   types.SoftDependencyCheckResult `json:"depends,omitempty"`
	Failures  []types.FailureRecord           `json:"failures,omitempty"`
	WrittenAt time.Time                       `json:"written_at"`
}

// Publisher persists run reports to an archive.
type Publisher interface {
	// Publish writes one report. The key is derived from the run's
	// stage, date, and run ID.
	Publish(ctx context.Context, report Report) error
}

// Key builds the archive object key for a report.
func Key(rec types.RunRecord) string {
	return fmt.Sprintf("stage=%s/day=%s/run_id=%s/report.json",
		rec.StageName, types.FormatDay(rec.AsOf), rec.RunID)
}

// Encode renders a report as indented JSON.
func Encode(report Report) ([]byte, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode report: %w", err)
	}
	return body, nil
}

// Nop discards every report.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Report) error { return nil }

var _ Publisher = Nop{}
