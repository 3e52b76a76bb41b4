package app

import (
	"context"
	"time"

	"assessment-engine/internal/domain"
)

// DefinitionRepository loads assessment definitions (from cache/backing store).
type DefinitionRepository interface {
	GetDefinition(ctx context.Context, assessmentID string) (domain.AssessmentDefinition, error)
}

// SubmissionRepository stores at most one submission per (assessment, candidate).
type SubmissionRepository interface {
	// Create returns domain.ErrDuplicateSubmission when the pair already exists.
	Create(ctx context.Context, sub domain.Submission) error
	Get(ctx context.Context, id string) (domain.Submission, error)
	FindByCandidate(ctx context.Context, assessmentID, candidateID string) (domain.Submission, error)
	ListByAssessment(ctx context.Context, assessmentID string) ([]domain.Submission, error)
	// Update applies fn under a row lock and stores the result.
	Update(ctx context.Context, id string, fn func(*domain.Submission) error) (domain.Submission, error)
}

// Confirmation settles a reserved ledger entry.
type Confirmation struct {
	CandidateID string
	ProblemID   string
	TxHash      string
	// Balance is the ledger-reported balance; nil increments the stored balance by the entry amount.
	Balance *float64
	At      time.Time
}

// RewardLedger is the durable idempotency guard for rewards, unique per (candidate, problem).
type RewardLedger interface {
	HasEntry(ctx context.Context, candidateID, problemID string) (bool, error)
	// Reserve inserts a reserved entry atomically; an existing entry yields domain.ErrRewardAlreadyIssued.
	Reserve(ctx context.Context, entry domain.RewardLedgerEntry) error
	// Confirm marks the entry confirmed and stores the wallet balance in one transaction.
	Confirm(ctx context.Context, c Confirmation) error
	Release(ctx context.Context, candidateID, problemID string) error
	PendingReservations(ctx context.Context, olderThan time.Time) ([]domain.RewardLedgerEntry, error)
}

type WalletRepository interface {
	// GetWallet returns domain.ErrNoWallet when the candidate has none.
	GetWallet(ctx context.Context, candidateID string) (domain.Wallet, error)
}

// Ledger is the external token service.
type Ledger interface {
	Transfer(ctx context.Context, to string, amount float64) (string, error)
	BalanceOf(ctx context.Context, address string) (float64, error)
}

type ProblemStatsRepository interface {
	RecordSubmission(ctx context.Context, problemID string, passed bool) error
	GetStats(ctx context.Context, problemID string) (domain.ProblemStats, error)
}
