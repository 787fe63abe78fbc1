package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralt/signserver/internal/auth"
	"github.com/ralt/signserver/internal/config"
)

func openUserStore(cfg *config.Config) (*auth.UserStore, error) {
	return auth.OpenUserStore(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
}

func newUserAddCmd(getConfig func() *config.Config) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "user_add",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(getConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			user, err := store.CreateUser(email, password)
			if err != nil {
				return err
			}
			fmt.Printf("created user %s (id=%d)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&password, "password", "", "User password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newUserResetPassCmd(getConfig func() *config.Config) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "user_reset_pass",
		Short: "Reset a user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(getConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ResetPassword(email, password); err != nil {
				return err
			}
			fmt.Printf("password reset for %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&password, "password", "", "New password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newUserDeleteCmd(getConfig func() *config.Config) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "user_delete",
		Short: "Delete a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(getConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteUser(email); err != nil {
				return err
			}
			fmt.Printf("deleted user %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.MarkFlagRequired("email")
	return cmd
}
