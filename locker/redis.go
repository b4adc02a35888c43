package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hoopline/gatekeeper/types"
)

const keyPrefix = "gatekeeper:lock:"

// releaseScript deletes the lock only when the caller still holds it,
// comparing the stored encoded lock against the holder's copy so the
// compare and the delete are one atomic step.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only for the current holder.
var refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker on Redis conditional writes. The lock
// value is the msgpack-encoded ProcessingLock; the key TTL doubles as
// the staleness window, so a crashed holder's lock expires on its own
// and the reclaim needs no separate sweep.
type RedisLocker struct {
	client *goredis.Client
	now    func() time.Time

	mu   sync.Mutex
	held map[string][]byte
}

// NewRedisLocker creates a locker from a Redis connection URL.
func NewRedisLocker(url string) (*RedisLocker, error) {
	if url == "" {
		return nil, errors.New("locker: redis URL required")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("locker: invalid redis URL: %w", err)
	}
	return &RedisLocker{
		client: goredis.NewClient(opts),
		now:    time.Now,
		held:   make(map[string][]byte),
	}, nil
}

// WithNow overrides the clock. For tests.
func (l *RedisLocker) WithNow(now func() time.Time) *RedisLocker {
	l.now = now
	return l
}

// TryAcquire implements Locker via SET NX PX: the create is conditional
// on the key not existing, and the PX expiry is the staleness window.
func (l *RedisLocker) TryAcquire(ctx context.Context, key, holderID string, staleAfter time.Duration) (*types.ProcessingLock, bool, error) {
	if staleAfter <= 0 {
		staleAfter = types.DefaultLockStaleAfter
	}
	lock := &types.ProcessingLock{
		LockID:     key,
		HolderID:   holderID,
		AcquiredAt: l.now().UTC(),
		StaleAfter: staleAfter,
	}
	encoded, err := msgpack.Marshal(lock)
	if err != nil {
		return nil, false, fmt.Errorf("locker: encode lock: %w", err)
	}

	ok, err := l.client.SetNX(ctx, keyPrefix+key, encoded, staleAfter).Result()
	if err != nil {
		return nil, false, fmt.Errorf("locker: acquire %s: %w", key, err)
	}
	if !ok {
		current, err := l.current(ctx, key)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}

	l.mu.Lock()
	l.held[holderKey(key, holderID)] = encoded
	l.mu.Unlock()
	return lock, true, nil
}

// Release implements Locker with an atomic compare-and-delete.
func (l *RedisLocker) Release(ctx context.Context, key, holderID string) error {
	l.mu.Lock()
	encoded, ok := l.held[holderKey(key, holderID)]
	l.mu.Unlock()
	if !ok {
		return ErrNotHeld
	}

	n, err := releaseScript.Run(ctx, l.client, []string{keyPrefix + key}, encoded).Int()
	if err != nil {
		return fmt.Errorf("locker: release %s: %w", key, err)
	}

	l.mu.Lock()
	delete(l.held, holderKey(key, holderID))
	l.mu.Unlock()

	if n == 0 {
		// The lock expired or was reclaimed while we held it.
		return ErrNotHeld
	}
	return nil
}

// Refresh implements Locker with an atomic compare-and-expire.
func (l *RedisLocker) Refresh(ctx context.Context, key, holderID string, staleAfter time.Duration) error {
	if staleAfter <= 0 {
		staleAfter = types.DefaultLockStaleAfter
	}
	l.mu.Lock()
	encoded, ok := l.held[holderKey(key, holderID)]
	l.mu.Unlock()
	if !ok {
		return ErrNotHeld
	}

	n, err := refreshScript.Run(ctx, l.client, []string{keyPrefix + key}, encoded, staleAfter.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("locker: refresh %s: %w", key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Current returns the lock record stored for key, or nil when unlocked.
func (l *RedisLocker) Current(ctx context.Context, key string) (*types.ProcessingLock, error) {
	return l.current(ctx, key)
}

func (l *RedisLocker) current(ctx context.Context, key string) (*types.ProcessingLock, error) {
	raw, err := l.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locker: read %s: %w", key, err)
	}
	var lock types.ProcessingLock
	if err := msgpack.Unmarshal(raw, &lock); err != nil {
		return nil, fmt.Errorf("locker: decode %s: %w", key, err)
	}
	return &lock, nil
}

// Close releases the Redis connection.
func (l *RedisLocker) Close() error { return l.client.Close() }

func holderKey(key, holderID string) string { return key + "\x00" + holderID }

var _ Locker = (*RedisLocker)(nil)
