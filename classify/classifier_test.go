package classify_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hoopline/gatekeeper/classify"
	"github.com/hoopline/gatekeeper/depend"
	"github.com/hoopline/gatekeeper/ledger"
	"github.com/hoopline/gatekeeper/rawfeed"
	"github.com/hoopline/gatekeeper/types"
)

func days(specs ...string) []time.Time {
	out := make([]time.Time, 0, len(specs))
	for _, s := range specs {
		d, err := types.ParseDay(s)
		if err != nil {
			panic(err)
		}
		out = append(out, d)
	}
	return out
}

var asOf = time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC)

func TestClassify_InsufficientHistory(t *testing.T) {
	c := classify.NewClassifier(rawfeed.NewStubSource(), nil)
	result, err := c.Classify(t.Context(), "p1", asOf, nil, nil, true)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.FailureType != types.FailureInsufficientHistory || result.IsCorrectable {
		t.Errorf("result = %+v, want INSUFFICIENT_HISTORY, not correctable", result)
	}
}

func TestClassify_StaleRecordIsComplete(t *testing.T) {
	c := classify.NewClassifier(rawfeed.NewStubSource(), nil)
	expected := days("2026-01-02", "2026-01-04")
	actual := days("2026-01-02", "2026-01-04", "2026-01-06")
	result, err := c.Classify(t.Context(), "p1", asOf, expected, actual, true)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.FailureType != types.FailureComplete || result.IsCorrectable {
		t.Errorf("result = %+v, want COMPLETE, not correctable", result)
	}
	if len(result.MissingDates) != 0 {
		t.Errorf("missing = %v, want none", result.MissingDates)
	}
}

func TestClassify_RawFeedSplit(t *testing.T) {
	expected := days("2026-01-02", "2026-01-04", "2026-01-06")
	actual := days("2026-01-02")

	cases := []struct {
		name        string
		statuses    map[string]rawfeed.Status
		want        types.FailureType
		correctable bool
	}{
		{
			name: "all DNP",
			statuses: map[string]rawfeed.Status{
				"2026-01-04": rawfeed.StatusDNP,
				"2026-01-06": rawfeed.StatusDNP,
			},
			want: types.FailurePlayerDNP,
		},
		{
			name:        "all absent from the feed",
			statuses:    nil,
			want:        types.FailureDataGap,
			correctable: true,
		},
		{
			name: "mixture",
			statuses: map[string]rawfeed.Status{
				"2026-01-04": rawfeed.StatusDNP,
			},
			want:        types.FailureMixed,
			correctable: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := rawfeed.NewStubSource()
			for day, status := range tc.statuses {
				raw.Set("p1", day, status)
			}
			c := classify.NewClassifier(raw, nil)
			result, err := c.Classify(t.Context(), "p1", asOf, expected, actual, true)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if result.FailureType != tc.want {
				t.Errorf("type = %s, want %s", result.FailureType, tc.want)
			}
			if result.IsCorrectable != tc.correctable {
				t.Errorf("correctable = %v, want %v", result.IsCorrectable, tc.correctable)
			}
			if len(result.MissingDates) != 2 {
				t.Errorf("missing = %v, want the two absent dates", result.MissingDates)
			}
		})
	}
}

func TestClassify_WithoutRawProbe(t *testing.T) {
	c := classify.NewClassifier(rawfeed.NewStubSource(), nil)
	expected := days("2026-01-02", "2026-01-04")
	result, err := c.Classify(t.Context(), "p1", asOf, expected, nil, false)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.FailureType != types.FailureDataGap || !result.IsCorrectable {
		t.Errorf("result = %+v, want presumed DATA_GAP", result)
	}
}

func TestReclassify_BackfillsUnclassified(t *testing.T) {
	led := ledger.NewMemoryLedger()
	missing := days("2026-01-04", "2026-01-06")
	err := led.Replace(t.Context(), "rolling_averages", asOf, []types.FailureRecord{
		{
			StageName:     "rolling_averages",
			AsOf:          asOf,
			EntityID:      "p1",
			EntityType:    types.EntityPlayer,
			Category:      types.EntityIncompleteData,
			ExpectedCount: 4,
			ActualCount:   2,
			MissingDates:  missing,
		},
		{
			StageName:   "rolling_averages",
			AsOf:        asOf,
			EntityID:    "p2",
			EntityType:  types.EntityPlayer,
			Category:    types.EntityIncompleteData,
			FailureType: types.FailureDataGap, // already classified
		},
	})
	if err != nil {
		t.Fatalf("seed failures: %v", err)
	}

	raw := rawfeed.NewStubSource()
	raw.Set("p1", "2026-01-04", rawfeed.StatusDNP)
	raw.Set("p1", "2026-01-06", rawfeed.StatusDNP)

	c := classify.NewClassifier(raw, nil)
	updated, err := c.Reclassify(t.Context(), led, "rolling_averages", asOf)
	if err != nil {
		t.Fatalf("reclassify: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}

	remaining, err := led.Unclassified(t.Context(), "rolling_averages", asOf)
	if err != nil {
		t.Fatalf("unclassified: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("still unclassified: %v", remaining)
	}
	for _, rec := range led.Failures("rolling_averages", asOf) {
		if rec.EntityID == "p1" && rec.FailureType != types.FailurePlayerDNP {
			t.Errorf("p1 type = %s, want PLAYER_DNP", rec.FailureType)
		}
	}
}

func TestCategorize_PriorityOrder(t *testing.T) {
	timeoutish := fmt.Errorf("probe: %w", context.DeadlineExceeded)
	cases := []struct {
		err  error
		want types.FailureCategory
	}{
		{nil, ""},
		{fmt.Errorf("stage config: %w", classify.ErrConfiguration), types.CategoryConfiguration},
		{fmt.Errorf("off-season: %w", classify.ErrNoData), types.CategoryNoData},
		{fmt.Errorf("dep: %w", depend.ErrUnsatisfied), types.CategoryUpstream},
		{timeoutish, types.CategoryTimeout},
		{errors.New("sqlite: disk I/O error"), types.CategoryProcessing},
	}
	for _, tc := range cases {
		if got := classify.Categorize(tc.err); got != tc.want {
			t.Errorf("Categorize(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
