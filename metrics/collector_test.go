package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("rolling_averages", "run-001")

	c.IncRunStarted()
	c.IncRunSucceeded()
	c.IncRunFailed()
	c.IncRunFailed()
	c.IncRunSkipped()
	c.IncDependencyRetry()
	c.IncDependencyRetry()
	c.IncDependencyRetry()
	c.IncDependencyFailure()
	c.IncHashSkip()
	c.IncSignalPublished()
	c.IncSignalPublished()
	c.IncSignalFailure()
	c.IncAlertSent()
	c.IncAlertSuppressed()
	c.IncAlertSuppressed()

	s := c.Snapshot()

	if s.RunsStarted != 1 {
		t.Errorf("RunsStarted = %d, want 1", s.RunsStarted)
	}
	if s.RunsSucceeded != 1 {
		t.Errorf("RunsSucceeded = %d, want 1", s.RunsSucceeded)
	}
	if s.RunsFailed != 2 {
		t.Errorf("RunsFailed = %d, want 2", s.RunsFailed)
	}
	if s.RunsSkipped != 1 {
		t.Errorf("RunsSkipped = %d, want 1", s.RunsSkipped)
	}
	if s.DependencyRetries != 3 {
		t.Errorf("DependencyRetries = %d, want 3", s.DependencyRetries)
	}
	if s.DependencyFailures != 1 {
		t.Errorf("DependencyFailures = %d, want 1", s.DependencyFailures)
	}
	if s.HashSkips != 1 {
		t.Errorf("HashSkips = %d, want 1", s.HashSkips)
	}
	if s.SignalsPublished != 2 {
		t.Errorf("SignalsPublished = %d, want 2", s.SignalsPublished)
	}
	if s.SignalFailures != 1 {
		t.Errorf("SignalFailures = %d, want 1", s.SignalFailures)
	}
	if s.AlertsSent != 1 {
		t.Errorf("AlertsSent = %d, want 1", s.AlertsSent)
	}
	if s.AlertsSuppressed != 2 {
		t.Errorf("AlertsSuppressed = %d, want 2", s.AlertsSuppressed)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("player_predictions", "run-42")
	s := c.Snapshot()

	if s.Stage != "player_predictions" {
		t.Errorf("Stage = %q, want %q", s.Stage, "player_predictions")
	}
	if s.RunID != "run-42" {
		t.Errorf("RunID = %q, want %q", s.RunID, "run-42")
	}
}

func TestCollector_AbsorbCoverage(t *testing.T) {
	c := NewCollector("rolling_averages", "run-001")

	c.AbsorbCoverage(450, 430, 20, 95.6)

	s := c.Snapshot()
	if s.EntitiesChecked != 450 {
		t.Errorf("EntitiesChecked = %d, want 450", s.EntitiesChecked)
	}
	if s.EntitiesComplete != 430 {
		t.Errorf("EntitiesComplete = %d, want 430", s.EntitiesComplete)
	}
	if s.EntitiesIncomplete != 20 {
		t.Errorf("EntitiesIncomplete = %d, want 20", s.EntitiesIncomplete)
	}
	if s.AvgCoveragePct != 95.6 {
		t.Errorf("AvgCoveragePct = %v, want 95.6", s.AvgCoveragePct)
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("rolling_averages", "run-001")
	c.IncRunStarted()
	c.IncSignalPublished()

	s1 := c.Snapshot()

	// Mutate collector after snapshot
	c.IncRunSucceeded()
	c.IncSignalPublished()
	c.IncSignalPublished()

	// s1 should be unchanged
	if s1.RunsSucceeded != 0 {
		t.Errorf("s1.RunsSucceeded = %d, want 0 (snapshot should be frozen)", s1.RunsSucceeded)
	}
	if s1.SignalsPublished != 1 {
		t.Errorf("s1.SignalsPublished = %d, want 1 (snapshot should be frozen)", s1.SignalsPublished)
	}

	// New snapshot should reflect mutations
	s2 := c.Snapshot()
	if s2.RunsSucceeded != 1 {
		t.Errorf("s2.RunsSucceeded = %d, want 1", s2.RunsSucceeded)
	}
	if s2.SignalsPublished != 3 {
		t.Errorf("s2.SignalsPublished = %d, want 3", s2.SignalsPublished)
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncRunStarted()
	c.IncRunSucceeded()
	c.IncRunSkipped()
	c.IncRunFailed()
	c.IncDependencyRetry()
	c.IncDependencyFailure()
	c.IncHashSkip()
	c.IncSignalPublished()
	c.IncSignalFailure()
	c.IncAlertSent()
	c.IncAlertSuppressed()
	c.AbsorbCoverage(10, 8, 2, 80)

	s := c.Snapshot()
	if s.RunsStarted != 0 {
		t.Errorf("nil collector snapshot RunsStarted = %d, want 0", s.RunsStarted)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("rolling_averages", "run-001")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncRunStarted()
				c.IncSignalPublished()
				c.IncDependencyRetry()
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.RunsStarted != want {
		t.Errorf("RunsStarted = %d, want %d", s.RunsStarted, want)
	}
	if s.SignalsPublished != want {
		t.Errorf("SignalsPublished = %d, want %d", s.SignalsPublished, want)
	}
	if s.DependencyRetries != want {
		t.Errorf("DependencyRetries = %d, want %d", s.DependencyRetries, want)
	}
}

func TestCollector_ZeroValueSnapshot(t *testing.T) {
	c := NewCollector("rolling_averages", "run-001")
	s := c.Snapshot()

	// All counters should be zero
	if s.RunsStarted != 0 || s.RunsSucceeded != 0 || s.RunsFailed != 0 || s.RunsSkipped != 0 {
		t.Error("fresh collector should have zero run lifecycle counters")
	}
	if s.DependencyRetries != 0 || s.DependencyFailures != 0 || s.HashSkips != 0 {
		t.Error("fresh collector should have zero dependency counters")
	}
	if s.SignalsPublished != 0 || s.SignalFailures != 0 || s.AlertsSent != 0 || s.AlertsSuppressed != 0 {
		t.Error("fresh collector should have zero signal counters")
	}
	if s.EntitiesChecked != 0 || s.AvgCoveragePct != 0 {
		t.Error("fresh collector should have zero coverage gauges")
	}
}
