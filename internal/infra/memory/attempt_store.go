package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"assessment-engine/internal/domain"
)

// AttemptStore keeps attempt state in process. Values are stored serialized so
// callers never share maps with the store.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string][]byte
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string][]byte)}
}

func (s *AttemptStore) Load(_ context.Context, assessmentID, candidateID string) (domain.Attempt, error) {
	s.mu.RLock()
	raw, ok := s.attempts[domain.AttemptKey(assessmentID, candidateID)]
	s.mu.RUnlock()
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	var a domain.Attempt
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Attempt{}, fmt.Errorf("decode attempt: %w", err)
	}
	return a, nil
}

func (s *AttemptStore) Save(_ context.Context, a domain.Attempt) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	s.mu.Lock()
	s.attempts[a.Key()] = raw
	s.mu.Unlock()
	return nil
}

func (s *AttemptStore) Delete(_ context.Context, assessmentID, candidateID string) error {
	s.mu.Lock()
	delete(s.attempts, domain.AttemptKey(assessmentID, candidateID))
	s.mu.Unlock()
	return nil
}
