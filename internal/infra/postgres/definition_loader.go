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

// DefinitionLoader loads assessment definitions stored as JSONB.
type DefinitionLoader struct {
	pool *pgxpool.Pool
}

func NewDefinitionLoader(pool *pgxpool.Pool) *DefinitionLoader {
	return &DefinitionLoader{pool: pool}
}

func (l *DefinitionLoader) LoadDefinition(ctx context.Context, assessmentID string) (domain.AssessmentDefinition, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM assessments WHERE id=$1`, assessmentID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AssessmentDefinition{}, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return domain.AssessmentDefinition{}, fmt.Errorf("load assessment: %w", err)
	}
	var def domain.AssessmentDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return domain.AssessmentDefinition{}, fmt.Errorf("unmarshal assessment: %w", err)
	}
	return def, nil
}

// SaveDefinition upserts a definition; used to seed the store.
func (l *DefinitionLoader) SaveDefinition(ctx context.Context, def domain.AssessmentDefinition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO assessments (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		def.ID, raw)
	if err != nil {
		return fmt.Errorf("save assessment: %w", err)
	}
	return nil
}
