package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// RewardStore implements the reward ledger and wallet lookups on Postgres.
type RewardStore struct {
	pool *pgxpool.Pool
}

func NewRewardStore(pool *pgxpool.Pool) *RewardStore {
	return &RewardStore{pool: pool}
}

func (s *RewardStore) GetWallet(ctx context.Context, candidateID string) (domain.Wallet, error) {
	w := domain.Wallet{CandidateID: candidateID}
	err := s.pool.QueryRow(ctx,
		`SELECT address, balance FROM wallets WHERE candidate_id=$1`, candidateID).Scan(&w.Address, &w.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wallet{}, domain.ErrNoWallet
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("load wallet: %w", err)
	}
	return w, nil
}

// PutWallet registers or replaces a wallet address.
func (s *RewardStore) PutWallet(ctx context.Context, w domain.Wallet) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wallets (candidate_id, address, balance) VALUES ($1, $2, $3)
		ON CONFLICT (candidate_id) DO UPDATE SET address = EXCLUDED.address`,
		w.CandidateID, w.Address, w.Balance)
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

func (s *RewardStore) HasEntry(ctx context.Context, candidateID, problemID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM reward_ledger WHERE candidate_id=$1 AND problem_id=$2)`,
		candidateID, problemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reward ledger: %w", err)
	}
	return exists, nil
}

// Reserve relies on the (candidate_id, problem_id) primary key; a concurrent
// second insert fails with a unique violation.
func (s *RewardStore) Reserve(ctx context.Context, e domain.RewardLedgerEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reward_ledger (candidate_id, problem_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.CandidateID, e.ProblemID, e.Amount, string(domain.LedgerReserved), e.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrRewardAlreadyIssued
	}
	if err != nil {
		return fmt.Errorf("reserve reward: %w", err)
	}
	return nil
}

func (s *RewardStore) Confirm(ctx context.Context, c app.Confirmation) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var amount float64
		err := tx.QueryRow(ctx, `
			UPDATE reward_ledger SET status=$3, tx_hash=$4, confirmed_at=$5
			WHERE candidate_id=$1 AND problem_id=$2 AND status=$6
			RETURNING amount`,
			c.CandidateID, c.ProblemID, string(domain.LedgerConfirmed), c.TxHash, c.At, string(domain.LedgerReserved),
		).Scan(&amount)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("confirm reward: no reservation for %s/%s", c.CandidateID, c.ProblemID)
		}
		if err != nil {
			return fmt.Errorf("confirm reward: %w", err)
		}

		if c.Balance != nil {
			_, err = tx.Exec(ctx, `UPDATE wallets SET balance=$2 WHERE candidate_id=$1`, c.CandidateID, *c.Balance)
		} else {
			_, err = tx.Exec(ctx, `UPDATE wallets SET balance=balance+$2 WHERE candidate_id=$1`, c.CandidateID, amount)
		}
		if err != nil {
			return fmt.Errorf("update wallet balance: %w", err)
		}
		return nil
	})
}

func (s *RewardStore) Release(ctx context.Context, candidateID, problemID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM reward_ledger WHERE candidate_id=$1 AND problem_id=$2 AND status=$3`,
		candidateID, problemID, string(domain.LedgerReserved))
	if err != nil {
		return fmt.Errorf("release reward: %w", err)
	}
	return nil
}

func (s *RewardStore) PendingReservations(ctx context.Context, olderThan time.Time) ([]domain.RewardLedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT candidate_id, problem_id, amount, status, created_at
		FROM reward_ledger WHERE status=$1 AND created_at < $2
		ORDER BY created_at`,
		string(domain.LedgerReserved), olderThan)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.RewardLedgerEntry
	for rows.Next() {
		var (
			e      domain.RewardLedgerEntry
			status string
		)
		if err := rows.Scan(&e.CandidateID, &e.ProblemID, &e.Amount, &status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		e.Status = domain.LedgerStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
