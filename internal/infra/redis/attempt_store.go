package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assessment-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AttemptStore keeps attempt state as JSON under attempt:{assessmentID}:{candidateID}.
// The TTL is refreshed on every save so abandoned attempts eventually expire.
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{client: client, ttl: ttl}
}

func (s *AttemptStore) Load(ctx context.Context, assessmentID, candidateID string) (domain.Attempt, error) {
	raw, err := s.client.Get(ctx, domain.AttemptKey(assessmentID, candidateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	var a domain.Attempt
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Attempt{}, fmt.Errorf("decode attempt: %w", err)
	}
	return a, nil
}

func (s *AttemptStore) Save(ctx context.Context, a domain.Attempt) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	if err := s.client.Set(ctx, a.Key(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) Delete(ctx context.Context, assessmentID, candidateID string) error {
	if err := s.client.Del(ctx, domain.AttemptKey(assessmentID, candidateID)).Err(); err != nil {
		return fmt.Errorf("del attempt: %w", err)
	}
	return nil
}
