// Package rawfeed provides the raw per-game source boundary.
//
// The raw feed is the upstream-of-everything record of who appeared in each
// game, including explicit did-not-play markers. It is the cross-check that
// separates "the player sat out" from "the data never arrived".
package rawfeed

import (
	"context"
	"time"
)

// Status is a player's raw-feed state for one game date.
type Status string

// Status constants.
const (
	// StatusPlayed: the raw feed has a participation row.
	StatusPlayed Status = "played"
	// StatusDNP: the raw feed has a row with an explicit did-not-play
	// marker. Legitimate absence.
	StatusDNP Status = "dnp"
	// StatusAbsent: the raw feed has no row for the date at all. The feed
	// has not caught up, or the data is genuinely missing.
	StatusAbsent Status = "absent"
)

// Source answers raw-feed presence questions.
type Source interface {
	// Statuses returns the raw-feed status for each requested date, keyed
	// by YYYY-MM-DD. Every requested date appears in the result; dates
	// without a raw row map to StatusAbsent.
	Statuses(ctx context.Context, playerID string, dates []time.Time) (map[string]Status, error)
}
