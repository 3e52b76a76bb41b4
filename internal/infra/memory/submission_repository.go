package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"assessment-engine/internal/domain"
)

// SubmissionRepository is an in-memory implementation of app.SubmissionRepository.
type SubmissionRepository struct {
	mu       sync.Mutex
	byID     map[string][]byte
	byPair   map[string]string
	ordering []string
}

func NewSubmissionRepository() *SubmissionRepository {
	return &SubmissionRepository{
		byID:   make(map[string][]byte),
		byPair: make(map[string]string),
	}
}

func pairKey(assessmentID, candidateID string) string {
	return assessmentID + "\x00" + candidateID
}

func (r *SubmissionRepository) Create(_ context.Context, sub domain.Submission) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(sub.AssessmentID, sub.CandidateID)
	if _, taken := r.byPair[key]; taken {
		return domain.ErrDuplicateSubmission
	}
	r.byPair[key] = sub.ID
	r.byID[sub.ID] = raw
	r.ordering = append(r.ordering, sub.ID)
	return nil
}

func (r *SubmissionRepository) Get(_ context.Context, id string) (domain.Submission, error) {
	r.mu.Lock()
	raw, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return decodeSubmission(raw)
}

func (r *SubmissionRepository) FindByCandidate(ctx context.Context, assessmentID, candidateID string) (domain.Submission, error) {
	r.mu.Lock()
	id, ok := r.byPair[pairKey(assessmentID, candidateID)]
	r.mu.Unlock()
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return r.Get(ctx, id)
}

func (r *SubmissionRepository) ListByAssessment(_ context.Context, assessmentID string) ([]domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Submission
	for _, id := range r.ordering {
		sub, err := decodeSubmission(r.byID[id])
		if err != nil {
			return nil, err
		}
		if sub.AssessmentID == assessmentID {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Update holds the repository lock for the whole read-modify-write.
func (r *SubmissionRepository) Update(_ context.Context, id string, fn func(*domain.Submission) error) (domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.byID[id]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	sub, err := decodeSubmission(raw)
	if err != nil {
		return domain.Submission{}, err
	}
	if err := fn(&sub); err != nil {
		return domain.Submission{}, err
	}
	next, err := json.Marshal(sub)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("encode submission: %w", err)
	}
	r.byID[id] = next
	return sub, nil
}

func decodeSubmission(raw []byte) (domain.Submission, error) {
	var sub domain.Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return domain.Submission{}, fmt.Errorf("decode submission: %w", err)
	}
	return sub, nil
}
