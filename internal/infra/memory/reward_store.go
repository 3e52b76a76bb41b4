package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
)

// RewardStore holds the reward ledger and wallets behind one lock so confirm and
// balance update happen together.
type RewardStore struct {
	mu      sync.Mutex
	entries map[string]domain.RewardLedgerEntry
	wallets map[string]domain.Wallet
}

func NewRewardStore() *RewardStore {
	return &RewardStore{
		entries: make(map[string]domain.RewardLedgerEntry),
		wallets: make(map[string]domain.Wallet),
	}
}

func entryKey(candidateID, problemID string) string {
	return candidateID + "\x00" + problemID
}

// PutWallet registers or replaces a candidate wallet.
func (s *RewardStore) PutWallet(w domain.Wallet) {
	s.mu.Lock()
	s.wallets[w.CandidateID] = w
	s.mu.Unlock()
}

func (s *RewardStore) GetWallet(_ context.Context, candidateID string) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[candidateID]
	if !ok {
		return domain.Wallet{}, domain.ErrNoWallet
	}
	return w, nil
}

func (s *RewardStore) HasEntry(_ context.Context, candidateID, problemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[entryKey(candidateID, problemID)]
	return ok, nil
}

func (s *RewardStore) Entry(candidateID, problemID string) (domain.RewardLedgerEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey(candidateID, problemID)]
	return e, ok
}

func (s *RewardStore) Reserve(_ context.Context, entry domain.RewardLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey(entry.CandidateID, entry.ProblemID)
	if _, ok := s.entries[key]; ok {
		return domain.ErrRewardAlreadyIssued
	}
	entry.Status = domain.LedgerReserved
	s.entries[key] = entry
	return nil
}

func (s *RewardStore) Confirm(_ context.Context, c app.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey(c.CandidateID, c.ProblemID)
	entry, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("confirm reward: no reservation for %s/%s", c.CandidateID, c.ProblemID)
	}
	at := c.At
	entry.Status = domain.LedgerConfirmed
	entry.TxHash = c.TxHash
	entry.ConfirmedAt = &at
	s.entries[key] = entry

	if w, ok := s.wallets[c.CandidateID]; ok {
		if c.Balance != nil {
			w.Balance = *c.Balance
		} else {
			w.Balance += entry.Amount
		}
		s.wallets[c.CandidateID] = w
	}
	return nil
}

// Release drops a reservation; confirmed entries are kept.
func (s *RewardStore) Release(_ context.Context, candidateID, problemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey(candidateID, problemID)
	if e, ok := s.entries[key]; ok && e.Status == domain.LedgerReserved {
		delete(s.entries, key)
	}
	return nil
}

func (s *RewardStore) PendingReservations(_ context.Context, olderThan time.Time) ([]domain.RewardLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RewardLedgerEntry
	for _, e := range s.entries {
		if e.Status == domain.LedgerReserved && e.CreatedAt.Before(olderThan) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
