package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"assessment-engine/internal/app"
	"github.com/spf13/cobra"
)

// NewRewardsCmd groups operator commands for the reward ledger.
func NewRewardsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Inspect the token reward ledger",
	}
	cmd.AddCommand(newRewardsPendingCmd(configPath))
	return cmd
}

func newRewardsPendingCmd(configPath *string) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List reservations whose transfer was never confirmed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			b, err := openBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			svc := app.NewRewardService(b.rewards, b.rewards, nil, rewardConfig(cfg), nil)
			entries, err := svc.PendingReservations(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 10*time.Minute, "minimum reservation age")
	return cmd
}
