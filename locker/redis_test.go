package locker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hoopline/gatekeeper/types"
)

func testLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := NewRedisLocker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

var lockDay = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func TestTryAcquire_MutualExclusion(t *testing.T) {
	l, _ := testLocker(t)
	key := types.LockKey("rolling_averages", lockDay)

	lock, ok, err := l.TryAcquire(t.Context(), key, "holder-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if lock.HolderID != "holder-a" || lock.LockID != key {
		t.Errorf("lock = %+v", lock)
	}

	current, ok, err := l.TryAcquire(t.Context(), key, "holder-b", time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second acquire succeeded while lock held")
	}
	if current == nil || current.HolderID != "holder-a" {
		t.Errorf("current = %+v, want holder-a's lock", current)
	}
}

// Two racing acquires for the same key: exactly one wins.
func TestTryAcquire_ConcurrentRace(t *testing.T) {
	l, _ := testLocker(t)
	key := types.LockKey("rolling_averages", lockDay)

	var wg sync.WaitGroup
	wins := make(chan string, 2)
	for _, holder := range []string{"holder-a", "holder-b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := l.TryAcquire(t.Context(), key, holder, time.Minute); err == nil && ok {
				wins <- holder
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}
}

func TestRelease_OnlyHolderMayRelease(t *testing.T) {
	l, _ := testLocker(t)
	key := types.LockKey("rolling_averages", lockDay)

	if _, ok, err := l.TryAcquire(t.Context(), key, "holder-a", time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	if err := l.Release(t.Context(), key, "holder-b"); !errors.Is(err, ErrNotHeld) {
		t.Errorf("foreign release err = %v, want ErrNotHeld", err)
	}
	if err := l.Release(t.Context(), key, "holder-a"); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Key is free again.
	if _, ok, err := l.TryAcquire(t.Context(), key, "holder-b", time.Minute); err != nil || !ok {
		t.Errorf("reacquire after release: ok=%v err=%v", ok, err)
	}
}

func TestTryAcquire_StaleLockReclaimed(t *testing.T) {
	l, mr := testLocker(t)
	key := types.LockKey("rolling_averages", lockDay)

	if _, ok, err := l.TryAcquire(t.Context(), key, "crashed", time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	// The holder dies; the key TTL is the staleness window.
	mr.FastForward(2 * time.Minute)

	lock, ok, err := l.TryAcquire(t.Context(), key, "holder-b", time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !ok || lock.HolderID != "holder-b" {
		t.Errorf("reclaim ok=%v lock=%+v, want holder-b to win", ok, lock)
	}
}

func TestRefresh_ExtendsWindow(t *testing.T) {
	l, mr := testLocker(t)
	key := types.LockKey("rolling_averages", lockDay)

	if _, ok, err := l.TryAcquire(t.Context(), key, "holder-a", time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	mr.FastForward(45 * time.Second)
	if err := l.Refresh(t.Context(), key, "holder-a", time.Minute); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Past the original window but inside the refreshed one.
	mr.FastForward(45 * time.Second)
	if _, ok, _ := l.TryAcquire(t.Context(), key, "holder-b", time.Minute); ok {
		t.Error("lock expired despite refresh")
	}

	if err := l.Refresh(t.Context(), key, "holder-b", time.Minute); !errors.Is(err, ErrNotHeld) {
		t.Errorf("foreign refresh err = %v, want ErrNotHeld", err)
	}
}

func TestRelease_AfterExpiry(t *testing.T) {
	l, mr := testLocker(t)
	key := types.LockKey("rolling_averages", lockDay)

	if _, ok, err := l.TryAcquire(t.Context(), key, "holder-a", time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	mr.FastForward(2 * time.Minute)

	if err := l.Release(t.Context(), key, "holder-a"); !errors.Is(err, ErrNotHeld) {
		t.Errorf("release after expiry err = %v, want ErrNotHeld", err)
	}
}
