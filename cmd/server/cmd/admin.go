package cmd

import (
	"fmt"

	"github.com/intheknowyyc/server/internal/config"
	"github.com/intheknowyyc/server/internal/domain/users"
	"github.com/intheknowyyc/server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newAdminCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer user accounts",
	}

	var params users.RegisterParams
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Long: `Create an account with the admin role.

Nothing changes when the email is already registered; the existing
account keeps its role.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)

			pool, err := openPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo, err := postgres.NewRepository(pool)
			if err != nil {
				return err
			}

			user, created, err := users.NewService(repo.Users(), logger).EnsureAdmin(cmd.Context(), params)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists (id %s, role %s)\n", user.Email, user.ID, user.Role)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %s)\n", user.Email, user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&params.Email, "email", "", "admin email address")
	create.Flags().StringVar(&params.Password, "password", "", "admin password (8 to 72 characters)")
	create.Flags().StringVar(&params.FullName, "full-name", "Administrator", "admin display name")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
