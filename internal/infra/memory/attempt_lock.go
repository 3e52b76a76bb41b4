package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AttemptLock is the single-process counterpart of the Redis attempt lock.
type AttemptLock struct {
	mu    sync.Mutex
	now   func() time.Time
	holds map[string]lockHold
}

type lockHold struct {
	token     string
	expiresAt time.Time
}

func NewAttemptLock() *AttemptLock {
	return &AttemptLock{now: time.Now, holds: make(map[string]lockHold)}
}

func (l *AttemptLock) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if h, ok := l.holds[key]; ok && h.expiresAt.After(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.holds[key] = lockHold{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *AttemptLock) Refresh(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holds[key]
	if !ok || h.token != token {
		return false, nil
	}
	h.expiresAt = l.now().Add(ttl)
	l.holds[key] = h
	return true, nil
}

func (l *AttemptLock) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.holds[key]; ok && h.token == token {
		delete(l.holds, key)
	}
	return nil
}
