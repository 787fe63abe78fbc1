package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralt/signserver/internal/config"
	"github.com/ralt/signserver/internal/dbmigrate"
)

// newCreateCmd implements `signctl create`: run migration 0001
// against a fresh database, establishing the users table.
func newCreateCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the users schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			m, err := dbmigrate.Open(cfg.DatabaseURL)
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

// newDropCmd implements `signctl drop`: revert every applied
// migration, dropping the schema.
func newDropCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Drop the users schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			m, err := dbmigrate.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer m.Close()

			for {
				n, err := m.Downgrade()
				if err != nil {
					return err
				}
				if n == 0 {
					break
				}
			}
			fmt.Println("schema dropped")
			return nil
		},
	}
}
