package types

import "time"

// SourceHashRecord is a persisted content hash for one upstream source,
// written alongside a stage's output so the next run can detect unchanged
// inputs and skip recomputation.
type SourceHashRecord struct {
	// SourcePrefix names the upstream source (e.g. "boxscores", "roster").
	SourcePrefix string
	// ContentHash is the hex-encoded content hash of the source slice the
	// run consumed. Empty means unknown and is treated as changed.
	ContentHash string
	// LastUpdated is when the hash was recorded.
	LastUpdated time.Time
}

// SourceMetadata carries per-source tracking fields for a run's output row.
// Built as an explicit map keyed by source prefix; output columns are
// derived by iterating the map, not by constructing field names on the fly.
type SourceMetadata struct {
	// ContentHash is the source's content hash at extraction time.
	ContentHash string
	// LastUpdated is the source's most recent record timestamp.
	LastUpdated time.Time
	// RowsFound is the number of source rows the run consumed.
	RowsFound int64
}
