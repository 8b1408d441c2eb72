package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/intheknowyyc/server/internal/storage/postgres"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type migrateOptions struct {
	databaseURL string
	path        string
}

func newMigrateCommand(global *globalOptions) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back schema migrations.

Migrations are embedded in the binary. Use --path to run a directory of
migration files instead.`,
	}
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "database URL (default: $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.path, "path", "", "migrations directory (default: embedded migrations)")

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := opts.url()
			if err != nil {
				return err
			}
			if err := postgres.MigrateDown(url, opts.path, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				url, err := opts.url()
				if err != nil {
					return err
				}
				if err := postgres.MigrateUp(url, opts.path); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				url, err := opts.url()
				if err != nil {
					return err
				}
				version, dirty, err := postgres.MigrationVersion(url, opts.path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

// url resolves the database URL from the flag or the environment, loading a
// .env file first when present.
func (o *migrateOptions) url() (string, error) {
	if o.databaseURL != "" {
		return o.databaseURL, nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("load .env: %w", err)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", errors.New("database URL required: set DATABASE_URL or pass --database-url")
}
