package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/attempt"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/grading"
	"assessment-engine/internal/infra/postgres"
	pgmigrations "assessment-engine/internal/infra/postgres/migrations"
	infraredis "assessment-engine/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

type passExecutor struct{}

func (passExecutor) Execute(_ context.Context, req grading.ExecutionRequest) (grading.ExecutionResult, error) {
	res := grading.ExecutionResult{Passed: true}
	for _, c := range req.TestCases {
		res.Cases = append(res.Cases, grading.CaseOutcome{CaseID: c.ID, Output: c.Expected, Passed: true})
	}
	return res, nil
}

type countingLedger struct {
	mu        sync.Mutex
	transfers int
}

func (l *countingLedger) Transfer(_ context.Context, _ string, amount float64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfers++
	return fmt.Sprintf("0xtx%d", l.transfers), nil
}

func (l *countingLedger) BalanceOf(_ context.Context, _ string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return float64(l.transfers), nil
}

type alwaysLucky struct{}

func (alwaysLucky) Float64() float64 { return 0 }

type stack struct {
	pool        *pgxpool.Pool
	redis       *goredis.Client
	service     *app.AssessmentService
	review      *app.ReviewService
	rewardStore *postgres.RewardStore
	stats       *postgres.ProblemStatsStore
	attempts    *infraredis.AttemptStore
	ledger      *countingLedger
}

func newStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	loader := postgres.NewDefinitionLoader(pool)
	if err := loader.SaveDefinition(ctx, domain.SampleDefinition()); err != nil {
		t.Fatalf("seed definition: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	s := &stack{
		pool:        pool,
		redis:       redisClient,
		rewardStore: postgres.NewRewardStore(pool),
		stats:       postgres.NewProblemStatsStore(pool),
		attempts:    infraredis.NewAttemptStore(redisClient, time.Hour),
		ledger:      &countingLedger{},
	}
	definitions := infraredis.NewDefinitionRepository(redisClient, loader, 5*time.Minute)
	submissions := postgres.NewSubmissionRepository(pool)
	rewards := app.NewRewardService(s.rewardStore, s.rewardStore, s.ledger, app.DefaultRewardConfig(), alwaysLucky{})
	pipeline := grading.NewPipeline(passExecutor{}, s.stats, grading.Config{ExecutorTimeout: 5 * time.Second})
	s.service = app.NewAssessmentService(definitions, submissions, s.attempts, s.stats, pipeline, rewards)
	s.review = app.NewReviewService(definitions, submissions)
	return s
}

func TestSubmitAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	if err := s.rewardStore.PutWallet(ctx, domain.Wallet{CandidateID: "cand-1", Address: "0xabc"}); err != nil {
		t.Fatalf("put wallet: %v", err)
	}

	sess, err := s.service.OpenAttempt(ctx, "assessment-1", "cand-1", attempt.Hooks{})
	if err != nil {
		t.Fatalf("open attempt: %v", err)
	}
	answers := map[string]domain.Answer{
		"q1": domain.Selection{OptionIDs: []string{"b"}},
		"q2": domain.Selection{OptionIDs: []string{"a", "c", "d"}},
		"q3": domain.FreeText{Text: "a mutex guards memory, a channel passes ownership"},
		"q4": domain.Code{Language: "go", Source: "package main"},
	}
	for qid, ans := range answers {
		if err := sess.Store().SetAnswer(ctx, qid, ans); err != nil {
			t.Fatalf("answer %s: %v", qid, err)
		}
	}
	stored, err := s.attempts.Load(ctx, "assessment-1", "cand-1")
	if err != nil || len(stored.Answers) != 4 {
		t.Fatalf("attempt state not persisted: %v %+v", err, stored)
	}

	sub, err := s.service.SubmitAttempt(ctx, sess, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Status != domain.StatusCompleted || sub.Grade == nil {
		t.Fatalf("expected graded submission, got %+v", sub)
	}
	if !sub.Grade.Provisional || sub.IsReviewed {
		t.Fatalf("free text answer should hold the grade provisional")
	}
	if sub.Grade.Total != 7 {
		t.Fatalf("expected 7 automatic points, got %v", sub.Grade.Total)
	}
	if len(sub.Rewards) != 1 || !sub.Rewards[0].Earned {
		t.Fatalf("expected one earned reward, got %+v", sub.Rewards)
	}
	if _, err := s.attempts.Load(ctx, "assessment-1", "cand-1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("attempt state should be cleared, got %v", err)
	}

	if _, err := s.service.Submit(ctx, app.SubmitRequest{AssessmentID: "assessment-1", CandidateID: "cand-1"}); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate submission, got %v", err)
	}

	if _, err := s.service.Regrade(ctx, sub.ID); err != nil {
		t.Fatalf("regrade: %v", err)
	}
	if s.ledger.transfers != 1 {
		t.Fatalf("regrade must not pay again, transfers=%d", s.ledger.transfers)
	}
	stats, err := s.stats.GetStats(ctx, "sum-two")
	if err != nil || stats.TotalSubmissions != 1 || stats.SuccessfulSubmissions != 1 {
		t.Fatalf("unexpected stats %+v err=%v", stats, err)
	}
	wallet, err := s.rewardStore.GetWallet(ctx, "cand-1")
	if err != nil || wallet.Balance != 1 {
		t.Fatalf("expected confirmed balance 1, got %+v err=%v", wallet, err)
	}

	if _, err := s.review.AssignMark(ctx, sub.ID, "q3", 3, "rev-1"); err != nil {
		t.Fatalf("assign mark: %v", err)
	}
	final, err := s.review.Finish(ctx, sub.ID, "rev-1")
	if err != nil {
		t.Fatalf("finish review: %v", err)
	}
	if !final.IsReviewed || final.Grade.Total != 10 || !final.Grade.Passed {
		t.Fatalf("unexpected final grade %+v", final.Grade)
	}
}

func TestRewardReservationIsUnique(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		refused int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.rewardStore.Reserve(ctx, domain.RewardLedgerEntry{
				CandidateID: "cand-2", ProblemID: "sum-two", Amount: 1, CreatedAt: time.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, domain.ErrRewardAlreadyIssued):
				refused++
			default:
				t.Errorf("reserve: %v", err)
			}
		}()
	}
	wg.Wait()
	if won != 1 || refused != 7 {
		t.Fatalf("expected exactly one reservation, won=%d refused=%d", won, refused)
	}

	pending, err := s.rewardStore.PendingReservations(ctx, time.Now().Add(time.Minute))
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending reservation, got %d err=%v", len(pending), err)
	}
	if err := s.rewardStore.Release(ctx, "cand-2", "sum-two"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if has, _ := s.rewardStore.HasEntry(ctx, "cand-2", "sum-two"); has {
		t.Fatalf("released reservation should be gone")
	}
}

func TestAttemptLockAcrossClients(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	other, err := goredis.ParseURL("redis://" + s.redis.Options().Addr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	a := infraredis.NewAttemptLock(s.redis)
	b := infraredis.NewAttemptLock(goredis.NewClient(other))

	key := domain.AttemptKey("assessment-1", "cand-3")
	token, ok, err := a.Acquire(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := b.Acquire(ctx, key, time.Minute); ok {
		t.Fatalf("second instance must not acquire a held lock")
	}
	if err := a.Release(ctx, key, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := b.Acquire(ctx, key, time.Minute); !ok {
		t.Fatalf("lock should be free after release")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "assess", "POSTGRES_PASSWORD": "assesspass", "POSTGRES_DB": "assessdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://assess:assesspass@%s:%s/assessdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
