package cli

import (
	"context"
	"testing"

	"assessment-engine/internal/config"
	"assessment-engine/internal/domain"
)

func TestOpenBackendsInMemoryRegistersWallets(t *testing.T) {
	ctx := context.Background()
	var cfg config.Config
	cfg.Rewards.Wallets = map[string]string{"cand-1": "0xabc"}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	defer b.Close()

	w, err := b.rewards.GetWallet(ctx, "cand-1")
	if err != nil || w.Address != "0xabc" {
		t.Fatalf("expected registered wallet, got %+v err=%v", w, err)
	}
	if _, err := b.definitions.GetDefinition(ctx, domain.SampleDefinition().ID); err != nil {
		t.Fatalf("expected the sample definition in memory mode: %v", err)
	}
}

func TestRewardConfigOverridesDefaults(t *testing.T) {
	var cfg config.Config
	cfg.Rewards.Chances = map[string]float64{"hard": 0.9}
	cfg.Rewards.Amounts = map[string]float64{"easy": 5}

	rc := rewardConfig(cfg)
	if rc.Chances[domain.DifficultyHard] != 0.9 || rc.Chances[domain.DifficultyEasy] != 0.5 {
		t.Fatalf("unexpected chances %+v", rc.Chances)
	}
	if rc.Amounts[domain.DifficultyEasy] != 5 || rc.Amounts[domain.DifficultyHard] != 3 {
		t.Fatalf("unexpected amounts %+v", rc.Amounts)
	}
}
