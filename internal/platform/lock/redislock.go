// Package lock provides a cross-instance mutex for posting critical sections.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when another instance holds the lock for the whole wait window.
var ErrBusy = errors.New("lock: resource busy")

// Locker obtains short-lived Redis locks.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// New constructs a Locker. ttl bounds how long a crashed holder can block others.
func New(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: redislock.New(rdb), ttl: ttl, wait: ttl}
}

// Acquire blocks (up to the lock TTL) until key is held and returns its release func.
// A nil Locker hands out no-op locks.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	backoff := redislock.LinearBackoff(50 * time.Millisecond)
	attempts := int(l.wait / (50 * time.Millisecond))
	lk, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(backoff, attempts),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrBusy, key)
	}
	if err != nil {
		return nil, fmt.Errorf("lock: obtain %s: %w", key, err)
	}
	return func() {
		// Release with a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lk.Release(releaseCtx)
	}, nil
}
