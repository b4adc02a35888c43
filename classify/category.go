package classify

import (
	"context"
	"errors"

	"github.com/hoopline/gatekeeper/depend"
	"github.com/hoopline/gatekeeper/types"
)

// Sentinel causes for run-level failure categorization. Stages wrap these
// to mark the two outcomes the taxonomy cannot infer from the error shape.
var (
	// ErrConfiguration marks a required input missing at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrNoData marks an upstream that legitimately produced nothing,
	// such as an off-season date. Success-shaped, never alerted.
	ErrNoData = errors.New("no data available")
)

// Categorize maps a run error onto the failure taxonomy. Categories are
// checked in priority order: configuration problems first, benign empty
// results next, then upstream gaps, timeouts, and the processing
// catch-all. A nil error has no category.
func Categorize(err error) types.FailureCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return types.CategoryConfiguration
	case errors.Is(err, ErrNoData):
		return types.CategoryNoData
	case errors.Is(err, depend.ErrUnsatisfied):
		return types.CategoryUpstream
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return types.CategoryTimeout
	default:
		return types.CategoryProcessing
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
