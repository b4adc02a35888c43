// Package hashtrack detects unchanged source data between runs.
//
// A stage writes a content hash per consumed source alongside its output;
// the next run compares current source hashes against the persisted set
// and may skip recomputation when nothing moved. The tracker is purely an
// optimization: any doubt, any missing hash, any store failure disables
// the skip rather than blocking processing.
package hashtrack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HashRows computes a hex content hash over an ordered set of source rows.
// Rows are canonicalized as entity|count|maxUpdated lines sorted by entity
// so the hash is stable across query plans.
func HashRows(rows map[string]string) string {
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	for _, k := range keys {
		h.WriteString(k)
		h.WriteString("|")
		h.WriteString(rows[k])
		h.WriteString("\n")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// HashString hashes one canonical string, for single-value sources.
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// EntityKey builds the tracker key for (stage, date, entity). Entity may
// be empty for date-level stages.
func EntityKey(stage, day, entityID string) string {
	if entityID == "" {
		return stage + ":" + day
	}
	return strings.Join([]string{stage, day, entityID}, ":")
}
