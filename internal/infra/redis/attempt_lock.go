package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// compare-and-delete: only the holder's token may release the lock
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// compare-and-expire: only the holder's token may extend the lock
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// AttemptLock ensures one live connection per attempt across server instances.
type AttemptLock struct {
	client *redis.Client
}

func NewAttemptLock(client *redis.Client) *AttemptLock {
	return &AttemptLock{client: client}
}

func (l *AttemptLock) lockKey(key string) string {
	return "lock:" + key
}

// Acquire takes the lock with SET NX; ok is false while another holder owns it.
func (l *AttemptLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *AttemptLock) Refresh(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := refreshScript.Run(ctx, l.client, []string{l.lockKey(key)}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("refresh lock %s: %w", key, err)
	}
	return n == 1, nil
}

func (l *AttemptLock) Release(ctx context.Context, key, token string) error {
	if _, err := releaseScript.Run(ctx, l.client, []string{l.lockKey(key)}, token).Result(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
