package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/cache"
	"assessment-engine/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefinitionRepository caches definitions in Redis and falls back to a loader on a miss.
// Layout: HSET assessment:{id}:definition data {json} cached_at {unix}
type DefinitionRepository struct {
	client *redis.Client
	loader memory.DefinitionLoader
	ttl    *cache.TTL
	sf     singleflight.Group
}

func NewDefinitionRepository(client *redis.Client, loader memory.DefinitionLoader, ttl time.Duration) *DefinitionRepository {
	return &DefinitionRepository{
		client: client,
		loader: loader,
		ttl:    cache.NewTTL(ttl),
	}
}

func (r *DefinitionRepository) GetDefinition(ctx context.Context, assessmentID string) (domain.AssessmentDefinition, error) {
	if def, ok := r.cached(ctx, assessmentID); ok {
		return def, nil
	}

	result, err, _ := r.sf.Do(assessmentID, func() (interface{}, error) {
		// another caller may have filled the cache meanwhile
		if def, ok := r.cached(ctx, assessmentID); ok {
			return def, nil
		}

		def, err := r.loader.LoadDefinition(ctx, assessmentID)
		if err != nil {
			return domain.AssessmentDefinition{}, err
		}

		raw, err := json.Marshal(def)
		if err != nil {
			return def, nil
		}
		key := r.key(assessmentID)
		pipe := r.client.Pipeline()
		pipe.HSet(ctx, key, "data", raw, "cached_at", strconv.FormatInt(time.Now().Unix(), 10))
		if ttl := r.ttl.Next(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warn().Err(err).Str("assessmentID", assessmentID).Msg("cache definition")
		}
		return def, nil
	})
	if err != nil {
		return domain.AssessmentDefinition{}, err
	}
	return result.(domain.AssessmentDefinition), nil
}

// Invalidate removes the cached copy.
func (r *DefinitionRepository) Invalidate(ctx context.Context, assessmentID string) error {
	return r.client.Del(ctx, r.key(assessmentID)).Err()
}

func (r *DefinitionRepository) cached(ctx context.Context, assessmentID string) (domain.AssessmentDefinition, bool) {
	raw, err := r.client.HGet(ctx, r.key(assessmentID), "data").Bytes()
	if err != nil || len(raw) == 0 {
		return domain.AssessmentDefinition{}, false
	}
	var def domain.AssessmentDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return domain.AssessmentDefinition{}, false
	}
	return def, true
}

func (r *DefinitionRepository) key(assessmentID string) string {
	return "assessment:" + assessmentID + ":definition"
}
