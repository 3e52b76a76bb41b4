package postgres

import (
	"context"
	"errors"
	"fmt"

	"assessment-engine/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ProblemStatsStore increments per-problem counters with a single upsert.
type ProblemStatsStore struct {
	pool *pgxpool.Pool
}

func NewProblemStatsStore(pool *pgxpool.Pool) *ProblemStatsStore {
	return &ProblemStatsStore{pool: pool}
}

func (s *ProblemStatsStore) RecordSubmission(ctx context.Context, problemID string, passed bool) error {
	success := 0
	if passed {
		success = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO problem_stats (problem_id, total_submissions, successful_submissions)
		VALUES ($1, 1, $2)
		ON CONFLICT (problem_id) DO UPDATE SET
			total_submissions = problem_stats.total_submissions + 1,
			successful_submissions = problem_stats.successful_submissions + EXCLUDED.successful_submissions`,
		problemID, success)
	if err != nil {
		return fmt.Errorf("record problem stats: %w", err)
	}
	return nil
}

func (s *ProblemStatsStore) GetStats(ctx context.Context, problemID string) (domain.ProblemStats, error) {
	st := domain.ProblemStats{ProblemID: problemID}
	err := s.pool.QueryRow(ctx,
		`SELECT total_submissions, successful_submissions FROM problem_stats WHERE problem_id=$1`,
		problemID).Scan(&st.TotalSubmissions, &st.SuccessfulSubmissions)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProblemStats{}, domain.ErrProblemNotFound
	}
	if err != nil {
		return domain.ProblemStats{}, fmt.Errorf("load problem stats: %w", err)
	}
	return st, nil
}
