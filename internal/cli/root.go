// Package cli implements signctl's admin command tree: schema
// create/drop, user management, migration control, and database
// diagnostics.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/signserver/internal/config"
)

// NewRootCmd creates the signctl root command.
func NewRootCmd() *cobra.Command {
	var configPath string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "signctl",
		Short: "Administer the signserver user database and schema",
		Long: `signctl manages the signserver user database: schema creation and
teardown, user accounts, migrations, and connection diagnostics.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}

			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to signserver config YAML")

	getConfig := func() *config.Config { return cfg }

	rootCmd.AddCommand(newCreateCmd(getConfig))
	rootCmd.AddCommand(newDropCmd(getConfig))
	rootCmd.AddCommand(newUserAddCmd(getConfig))
	rootCmd.AddCommand(newUserResetPassCmd(getConfig))
	rootCmd.AddCommand(newUserDeleteCmd(getConfig))
	rootCmd.AddCommand(newMigrateInitCmd(getConfig))
	rootCmd.AddCommand(newMigrateUpgradeCmd(getConfig))
	rootCmd.AddCommand(newMigrateDowngradeCmd(getConfig))
	rootCmd.AddCommand(newMigrateHistoryCmd(getConfig))
	rootCmd.AddCommand(newDBHealthCmd(getConfig))
	rootCmd.AddCommand(newPoolStatsCmd(getConfig))

	return rootCmd
}
