package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestAttemptStoreSetsAndClearsKeys(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	store := NewAttemptStore(client, time.Hour)

	err := store.Save(ctx, domain.Attempt{
		AssessmentID:     "a1",
		CandidateID:      "c1",
		RemainingSeconds: 120,
		Answers:          domain.Answers{"q4": domain.Code{Language: "go", Source: "package main"}},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("attempt:a1:c1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("attempt:a1:c1"); ttl != time.Hour {
		t.Fatalf("expected ttl of one hour, got %v", ttl)
	}

	got, err := store.Load(ctx, "a1", "c1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if code, ok := got.Answers["q4"].(domain.Code); !ok || code.Language != "go" || got.RemainingSeconds != 120 {
		t.Fatalf("unexpected attempt %+v", got)
	}

	if err := store.Delete(ctx, "a1", "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("attempt:a1:c1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, err := store.Load(ctx, "a1", "c1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDefinitionRepositoryCachesInRedis(t *testing.T) {
	mr, client := newClient(t)
	loader := &countingLoader{DefinitionLoader: memory.NewStaticDefinitionLoader(domain.SampleDefinition())}
	repo := NewDefinitionRepository(client, loader, time.Minute)

	def, err := repo.GetDefinition(context.Background(), "assessment-1")
	if err != nil {
		t.Fatalf("get definition: %v", err)
	}
	if len(def.Questions()) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(def.Questions()))
	}
	if !mr.Exists("assessment:assessment-1:definition") {
		t.Fatalf("expected cached hash")
	}

	// served from redis, loader untouched
	cached, _ := repo.GetDefinition(context.Background(), "assessment-1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if q, ok := cached.Question("q2"); !ok || len(q.Correct) != 3 {
		t.Fatalf("cached definition lost detail: %+v", q)
	}

	if err := repo.Invalidate(context.Background(), "assessment-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.GetDefinition(context.Background(), "assessment-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, calls=%d", loader.calls)
	}
}

func TestDefinitionRepositoryPropagatesNotFound(t *testing.T) {
	_, client := newClient(t)
	repo := NewDefinitionRepository(client, memory.NewStaticDefinitionLoader(), time.Minute)
	if _, err := repo.GetDefinition(context.Background(), "nope"); !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttemptLockIsExclusiveAndTokenGuarded(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)
	lock := NewAttemptLock(client)

	token, ok, err := lock.Acquire(ctx, "attempt:a1:c1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := lock.Acquire(ctx, "attempt:a1:c1", time.Minute); ok {
		t.Fatalf("expected second acquire to fail while held")
	}

	if err := lock.Release(ctx, "attempt:a1:c1", "someone-else"); err != nil {
		t.Fatalf("release with wrong token: %v", err)
	}
	if _, ok, _ := lock.Acquire(ctx, "attempt:a1:c1", time.Minute); ok {
		t.Fatalf("wrong token must not release the lock")
	}

	if ok, err := lock.Refresh(ctx, "attempt:a1:c1", token, time.Minute); err != nil || !ok {
		t.Fatalf("expected holder to refresh, ok=%v err=%v", ok, err)
	}
	if err := lock.Release(ctx, "attempt:a1:c1", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := lock.Acquire(ctx, "attempt:a1:c1", time.Minute); !ok {
		t.Fatalf("expected acquire after release")
	}
}

type countingLoader struct {
	memory.DefinitionLoader
	calls int
}

func (l *countingLoader) LoadDefinition(ctx context.Context, id string) (domain.AssessmentDefinition, error) {
	l.calls++
	return l.DefinitionLoader.LoadDefinition(ctx, id)
}
