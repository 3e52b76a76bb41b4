package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/attempt"
	"assessment-engine/internal/config"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/grading"
	"assessment-engine/internal/infra/executor"
	"assessment-engine/internal/infra/ledger"
	"assessment-engine/internal/infra/memory"
	"assessment-engine/internal/infra/postgres"
	redisstore "assessment-engine/internal/infra/redis"
	transport "assessment-engine/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends holds the storage implementations selected by configuration.
type backends struct {
	definitions app.DefinitionRepository
	submissions app.SubmissionRepository
	attempts    attempt.StateStore
	lock        transport.AttemptLock
	rewards     interface {
		app.RewardLedger
		app.WalletRepository
	}
	stats app.ProblemStatsRepository

	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends picks postgres and redis when configured and the in-memory stores otherwise.
func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, err
		}
	}
	attemptTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	cacheTTL := config.TTLDuration(cfg.Assessment.CacheTTL, 10*time.Minute)

	var loader memory.DefinitionLoader = memory.NewStaticDefinitionLoader(domain.SampleDefinition())
	var putWallet func(context.Context, domain.Wallet) error
	if pool != nil {
		pgLoader := postgres.NewDefinitionLoader(pool)
		if cfg.Assessment.SeedSample {
			if err := pgLoader.SaveDefinition(ctx, domain.SampleDefinition()); err != nil {
				b.Close()
				return nil, err
			}
		}
		loader = pgLoader
		rewards := postgres.NewRewardStore(pool)
		b.submissions = postgres.NewSubmissionRepository(pool)
		b.rewards = rewards
		b.stats = postgres.NewProblemStatsStore(pool)
		putWallet = rewards.PutWallet
	} else {
		log.Warn().Msg("postgres not configured, submissions and rewards are kept in memory")
		rewards := memory.NewRewardStore()
		b.submissions = memory.NewSubmissionRepository()
		b.rewards = rewards
		b.stats = memory.NewProblemStatsStore()
		putWallet = func(_ context.Context, w domain.Wallet) error {
			rewards.PutWallet(w)
			return nil
		}
	}
	for candidateID, address := range cfg.Rewards.Wallets {
		if err := putWallet(ctx, domain.Wallet{CandidateID: candidateID, Address: address}); err != nil {
			b.Close()
			return nil, fmt.Errorf("register wallet for %s: %w", candidateID, err)
		}
	}

	if redisClient != nil {
		b.definitions = redisstore.NewDefinitionRepository(redisClient, loader, cacheTTL)
		b.attempts = redisstore.NewAttemptStore(redisClient, attemptTTL)
		b.lock = redisstore.NewAttemptLock(redisClient)
	} else {
		b.definitions = memory.NewDefinitionRepository(loader, cacheTTL)
		b.attempts = memory.NewAttemptStore()
		b.lock = memory.NewAttemptLock()
	}
	return b, nil
}

func rewardConfig(cfg config.Config) app.RewardConfig {
	out := app.DefaultRewardConfig()
	for k, v := range cfg.Rewards.Chances {
		out.Chances[domain.Difficulty(k)] = v
	}
	for k, v := range cfg.Rewards.Amounts {
		out.Amounts[domain.Difficulty(k)] = v
	}
	return out
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if cfg.Grading.ExecutorURL == "" {
		log.Warn().Msg("grading.executor_url not set, code answers will fail to execute")
	}
	exec := executor.NewClient(cfg.Grading.ExecutorURL, config.TTLDuration(cfg.Grading.ExecutorTimeout, 30*time.Second))
	pipeline := grading.NewPipeline(exec, b.stats, grading.Config{
		ExecutorTimeout:       config.TTLDuration(cfg.Grading.ExecutorTimeout, 30*time.Second),
		Concurrency:           cfg.Grading.Concurrency,
		LightCopyingThreshold: cfg.Grading.LightCopyingThreshold,
	})

	var rewards *app.RewardService
	if cfg.Rewards.LedgerURL != "" {
		tokens := ledger.NewClient(cfg.Rewards.LedgerURL, config.TTLDuration(cfg.Rewards.LedgerTimeout, 15*time.Second))
		rewards = app.NewRewardService(b.rewards, b.rewards, tokens, rewardConfig(cfg), app.NewRand())
	} else {
		log.Info().Msg("rewards.ledger_url not set, token rewards disabled")
	}

	assessments := app.NewAssessmentService(b.definitions, b.submissions, b.attempts, b.stats, pipeline, rewards)
	reviews := app.NewReviewService(b.definitions, b.submissions)
	wsHandler := transport.NewWSHandler(assessments, b.lock, transport.WSConfig{})
	router := transport.NewRouter(transport.NewAPI(assessments, reviews), wsHandler, transport.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 90*time.Second),
	}
	server.RegisterOnShutdown(wsHandler.Shutdown)

	go func() {
		log.Info().Str("port", finalPort).Msg("starting assessment engine")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
