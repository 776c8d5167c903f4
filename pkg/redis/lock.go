package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another process holds the lock
var ErrLockHeld = errors.New("lock held by another owner")

// releaseScript deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Locker hands out short-lived exclusive locks shared across processes
// ⭐ SSOT: 분산 락은 여기서만
type Locker struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewLocker creates a locker whose locks expire after ttl
func NewLocker(client *Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Acquire takes the lock named key or returns ErrLockHeld.
// The returned func releases it; releasing an expired lock is a no-op.
// With Redis disabled every Acquire succeeds.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if !l.client.Enabled() {
		return func() {}, nil
	}

	fullKey := fmt.Sprintf("%s:lock:%s", l.prefix, key)
	token := uuid.NewString()

	ok, err := l.client.Redis().SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquire failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
	}

	release := func() {
		// release must outlive a cancelled caller context
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.client.Redis(), []string{fullKey}, token).Err()
	}
	return release, nil
}
