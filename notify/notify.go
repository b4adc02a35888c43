// Package notify delivers failure alerts to operators.
//
// Alerting is policy-gated upstream of this package: the lifecycle
// controller decides what is alertable (no_data_available never is,
// backfill mode suppresses everything) and notifiers only deliver.
package notify

import (
	"context"
	"time"

	"github.com/hoopline/gatekeeper/types"
)

// Alert is one operator-facing failure notification.
type Alert struct {
	Stage    string                `json:"stage"`
	RunID    string                `json:"run_id"`
	AsOfDate string                `json:"as_of_date"`
	Category types.FailureCategory `json:"category"`
	Message  string                `json:"message"`
	SentAt   time.Time             `json:"sent_at"`
}

// Notifier delivers alerts. Delivery failures are the caller's to log;
// they must never fail a run.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Nop discards every alert.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Alert) error { return nil }

var _ Notifier = Nop{}
