package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefinitionLoader fetches assessment definitions from a backing store.
type DefinitionLoader interface {
	LoadDefinition(ctx context.Context, assessmentID string) (domain.AssessmentDefinition, error)
}

// DefinitionRepository keeps definitions in process. An expired entry is still served
// when the loader fails, since a definition does not change under a running attempt.
type DefinitionRepository struct {
	loader DefinitionLoader
	ttl    *cache.TTL
	clock  func() time.Time
	sf     singleflight.Group

	mu      sync.RWMutex
	entries map[string]definitionEntry
}

type definitionEntry struct {
	def       domain.AssessmentDefinition
	expiresAt time.Time
}

func (e definitionEntry) fresh(now time.Time) bool { return e.expiresAt.After(now) }

func NewDefinitionRepository(loader DefinitionLoader, ttl time.Duration) *DefinitionRepository {
	return &DefinitionRepository{
		loader:  loader,
		ttl:     cache.NewTTL(ttl),
		clock:   time.Now,
		entries: make(map[string]definitionEntry),
	}
}

func (r *DefinitionRepository) entry(assessmentID string) (definitionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[assessmentID]
	return e, ok
}

func (r *DefinitionRepository) GetDefinition(ctx context.Context, assessmentID string) (domain.AssessmentDefinition, error) {
	if e, ok := r.entry(assessmentID); ok && e.fresh(r.clock()) {
		return e.def, nil
	}

	v, err, _ := r.sf.Do(assessmentID, func() (interface{}, error) {
		now := r.clock()
		stale, cached := r.entry(assessmentID)
		if cached && stale.fresh(now) {
			return stale.def, nil
		}

		def, err := r.loader.LoadDefinition(ctx, assessmentID)
		switch {
		case err == nil:
		case cached && !errors.Is(err, domain.ErrAssessmentNotFound):
			log.Warn().Err(err).Str("assessmentID", assessmentID).Msg("load definition, serving cached copy")
			return stale.def, nil
		default:
			return nil, err
		}

		r.mu.Lock()
		r.entries[assessmentID] = definitionEntry{def: def, expiresAt: now.Add(r.ttl.Next())}
		r.mu.Unlock()
		return def, nil
	})
	if err != nil {
		return domain.AssessmentDefinition{}, err
	}
	return v.(domain.AssessmentDefinition), nil
}

// Invalidate drops a cached definition so the next read reloads it.
func (r *DefinitionRepository) Invalidate(assessmentID string) {
	r.mu.Lock()
	delete(r.entries, assessmentID)
	r.mu.Unlock()
}

// StaticDefinitionLoader serves definitions from a map (demo mode and tests).
type StaticDefinitionLoader struct {
	defs map[string]domain.AssessmentDefinition
}

func NewStaticDefinitionLoader(defs ...domain.AssessmentDefinition) *StaticDefinitionLoader {
	m := make(map[string]domain.AssessmentDefinition, len(defs))
	for _, d := range defs {
		m[d.ID] = d
	}
	return &StaticDefinitionLoader{defs: m}
}

func (l *StaticDefinitionLoader) LoadDefinition(_ context.Context, assessmentID string) (domain.AssessmentDefinition, error) {
	if def, ok := l.defs[assessmentID]; ok {
		return def, nil
	}
	return domain.AssessmentDefinition{}, domain.ErrAssessmentNotFound
}
