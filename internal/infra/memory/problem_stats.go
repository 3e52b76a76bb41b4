package memory

import (
	"context"
	"sync"

	"assessment-engine/internal/domain"
)

type ProblemStatsStore struct {
	mu    sync.Mutex
	stats map[string]domain.ProblemStats
}

func NewProblemStatsStore() *ProblemStatsStore {
	return &ProblemStatsStore{stats: make(map[string]domain.ProblemStats)}
}

func (s *ProblemStatsStore) RecordSubmission(_ context.Context, problemID string, passed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[problemID]
	st.ProblemID = problemID
	st.TotalSubmissions++
	if passed {
		st.SuccessfulSubmissions++
	}
	s.stats[problemID] = st
	return nil
}

func (s *ProblemStatsStore) GetStats(_ context.Context, problemID string) (domain.ProblemStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[problemID]
	if !ok {
		return domain.ProblemStats{}, domain.ErrProblemNotFound
	}
	return st, nil
}
