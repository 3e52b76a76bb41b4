package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"assessment-engine/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SubmissionRepository stores submissions as JSONB documents. The
// (assessment_id, candidate_id) unique constraint rejects duplicates.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

func (r *SubmissionRepository) Create(ctx context.Context, sub domain.Submission) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO submissions (id, assessment_id, candidate_id, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		sub.ID, sub.AssessmentID, sub.CandidateID, string(sub.Status), raw, sub.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSubmission
	}
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) Get(ctx context.Context, id string) (domain.Submission, error) {
	return r.one(ctx, r.pool.QueryRow(ctx, `SELECT data FROM submissions WHERE id=$1`, id))
}

func (r *SubmissionRepository) FindByCandidate(ctx context.Context, assessmentID, candidateID string) (domain.Submission, error) {
	return r.one(ctx, r.pool.QueryRow(ctx,
		`SELECT data FROM submissions WHERE assessment_id=$1 AND candidate_id=$2`, assessmentID, candidateID))
}

func (r *SubmissionRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]domain.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM submissions WHERE assessment_id=$1 ORDER BY created_at`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		var sub domain.Submission
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Update locks the row with SELECT ... FOR UPDATE for the read-modify-write.
func (r *SubmissionRepository) Update(ctx context.Context, id string, fn func(*domain.Submission) error) (domain.Submission, error) {
	var updated domain.Submission
	err := r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		sub, err := r.one(ctx, tx.QueryRow(ctx, `SELECT data FROM submissions WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(&sub); err != nil {
			return err
		}
		raw, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("marshal submission: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE submissions SET status=$2, data=$3, updated_at=now() WHERE id=$1`,
			id, string(sub.Status), raw); err != nil {
			return fmt.Errorf("update submission: %w", err)
		}
		updated = sub
		return nil
	})
	if err != nil {
		return domain.Submission{}, err
	}
	return updated, nil
}

func (r *SubmissionRepository) one(_ context.Context, row pgx.Row) (domain.Submission, error) {
	var raw []byte
	err := row.Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	var sub domain.Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return domain.Submission{}, fmt.Errorf("unmarshal submission: %w", err)
	}
	return sub, nil
}
