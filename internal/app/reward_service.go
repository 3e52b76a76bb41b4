package app

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"assessment-engine/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	ReasonAlreadyRewarded = "already rewarded"
	ReasonNoLuck          = "luck not in your favor"
	ReasonNoWallet        = "no wallet"
	ReasonTransferFailed  = "transfer failed"
	ReasonNotPassed       = "not passed"
	ReasonUnavailable     = "reward ledger unavailable"
)

// Rand yields values in [0, 1).
type Rand interface {
	Float64() float64
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRand returns a goroutine-safe source seeded from the clock.
func NewRand() Rand {
	return &lockedRand{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

type RewardConfig struct {
	Chances map[domain.Difficulty]float64
	Amounts map[domain.Difficulty]float64
}

func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		Chances: map[domain.Difficulty]float64{
			domain.DifficultyEasy:   0.5,
			domain.DifficultyMedium: 0.35,
			domain.DifficultyHard:   0.2,
		},
		Amounts: map[domain.Difficulty]float64{
			domain.DifficultyEasy:   1,
			domain.DifficultyMedium: 2,
			domain.DifficultyHard:   3,
		},
	}
}

// RewardService issues at most one token reward per (candidate, problem).
type RewardService struct {
	entries RewardLedger
	wallets WalletRepository
	ledger  Ledger
	cfg     RewardConfig
	rnd     Rand
	now     func() time.Time
}

func NewRewardService(entries RewardLedger, wallets WalletRepository, ledger Ledger, cfg RewardConfig, rnd Rand) *RewardService {
	if rnd == nil {
		rnd = NewRand()
	}
	return &RewardService{
		entries: entries,
		wallets: wallets,
		ledger:  ledger,
		cfg:     cfg,
		rnd:     rnd,
		now:     time.Now,
	}
}

// Consider decides the reward for one passed code result. The ledger entry is reserved
// before the transfer and only confirmed after it succeeds.
func (s *RewardService) Consider(ctx context.Context, candidateID string, result domain.CodeSubmissionResult) domain.RewardOutcome {
	return s.consider(ctx, candidateID, result, false)
}

// Retry considers a result again after a retriable outcome. A draw that was already won
// is not repeated.
func (s *RewardService) Retry(ctx context.Context, candidateID string, result domain.CodeSubmissionResult, prev domain.RewardOutcome) domain.RewardOutcome {
	return s.consider(ctx, candidateID, result, prev.Drawn)
}

// Retriable reports whether an outcome left nothing settled: the ledger was unreachable or
// the transfer failed and its reservation was released.
func Retriable(o domain.RewardOutcome) bool {
	return !o.Earned && (o.Reason == ReasonTransferFailed || o.Reason == ReasonUnavailable)
}

func (s *RewardService) consider(ctx context.Context, candidateID string, result domain.CodeSubmissionResult, drawn bool) domain.RewardOutcome {
	out := domain.RewardOutcome{QuestionID: result.QuestionID, ProblemID: result.ProblemID}
	if !result.Passed {
		out.Reason = ReasonNotPassed
		return out
	}
	logger := log.With().Str("candidateID", candidateID).Str("problemID", result.ProblemID).Logger()

	exists, err := s.entries.HasEntry(ctx, candidateID, result.ProblemID)
	if err != nil {
		logger.Error().Err(err).Msg("check reward ledger")
		out.Reason = ReasonUnavailable
		return out
	}
	if exists {
		out.Reason = ReasonAlreadyRewarded
		return out
	}

	if !drawn && s.rnd.Float64() >= s.cfg.Chances[result.Difficulty] {
		out.Reason = ReasonNoLuck
		return out
	}
	out.Drawn = true

	wallet, err := s.wallets.GetWallet(ctx, candidateID)
	if err != nil {
		if !errors.Is(err, domain.ErrNoWallet) {
			logger.Error().Err(err).Msg("load wallet")
		}
		out.Reason = ReasonNoWallet
		return out
	}

	amount := s.cfg.Amounts[result.Difficulty]
	err = s.entries.Reserve(ctx, domain.RewardLedgerEntry{
		CandidateID: candidateID,
		ProblemID:   result.ProblemID,
		Amount:      amount,
		Status:      domain.LedgerReserved,
		CreatedAt:   s.now(),
	})
	if errors.Is(err, domain.ErrRewardAlreadyIssued) {
		out.Reason = ReasonAlreadyRewarded
		return out
	}
	if err != nil {
		logger.Error().Err(err).Msg("reserve reward")
		out.Reason = ReasonUnavailable
		return out
	}

	txHash, err := s.ledger.Transfer(ctx, wallet.Address, amount)
	if err != nil {
		logger.Warn().Err(err).Float64("amount", amount).Msg("token transfer failed")
		if relErr := s.entries.Release(ctx, candidateID, result.ProblemID); relErr != nil {
			logger.Error().Err(relErr).Msg("release reward reservation")
		}
		out.Reason = ReasonTransferFailed
		return out
	}

	conf := Confirmation{CandidateID: candidateID, ProblemID: result.ProblemID, TxHash: txHash, At: s.now()}
	if balance, err := s.ledger.BalanceOf(ctx, wallet.Address); err == nil {
		conf.Balance = &balance
	} else {
		logger.Warn().Err(err).Msg("read ledger balance, incrementing stored balance")
	}
	if err := s.entries.Confirm(ctx, conf); err != nil {
		// The transfer went through; the reserved entry still blocks a second reward.
		logger.Error().Err(err).Str("txHash", txHash).Msg("confirm reward")
	}

	out.Earned = true
	out.Amount = amount
	out.TxHash = txHash
	return out
}

// PendingReservations lists reserved entries older than age for operator follow-up.
func (s *RewardService) PendingReservations(ctx context.Context, age time.Duration) ([]domain.RewardLedgerEntry, error) {
	return s.entries.PendingReservations(ctx, s.now().Add(-age))
}
