package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralt/signserver/internal/config"
)

func newDBHealthCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "db_health",
		Short: "Check database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(getConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Health(); err != nil {
				return err
			}
			fmt.Println("database OK")
			return nil
		},
	}
}

func newPoolStatsCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "pool_stats",
		Short: "Print connection pool statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(getConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			stats := store.PoolStats()
			fmt.Printf("open=%d in_use=%d idle=%d wait_count=%d wait_duration=%s\n",
				stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount, stats.WaitDuration)
			return nil
		},
	}
}
