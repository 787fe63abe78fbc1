package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralt/signserver/internal/config"
	"github.com/ralt/signserver/internal/dbmigrate"
)

func newMigrateInitCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate_init",
		Short: "Apply the initial migration only",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := dbmigrate.Open(getConfig().DatabaseURL)
			if err != nil {
				return err
			}
			defer m.Close()
			n, err := m.Init()
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", n)
			return nil
		},
	}
}

func newMigrateUpgradeCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate_upgrade",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := dbmigrate.Open(getConfig().DatabaseURL)
			if err != nil {
				return err
			}
			defer m.Close()
			n, err := m.Upgrade()
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", n)
			return nil
		},
	}
}

func newMigrateDowngradeCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate_downgrade",
		Short: "Revert the most recently applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := dbmigrate.Open(getConfig().DatabaseURL)
			if err != nil {
				return err
			}
			defer m.Close()
			n, err := m.Downgrade()
			if err != nil {
				return err
			}
			fmt.Printf("reverted %d migration(s)\n", n)
			return nil
		},
	}
}

func newMigrateHistoryCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate_history",
		Short: "List applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := dbmigrate.Open(getConfig().DatabaseURL)
			if err != nil {
				return err
			}
			defer m.Close()

			records, err := m.History()
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s  applied_at=%s\n", r.Id, r.AppliedAt)
			}
			return nil
		},
	}
}
