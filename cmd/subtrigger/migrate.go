package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/config"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/store/postgres"
)

var errNoDatabase = errors.New("DATABASE_URL is required for migrations")

func migrationURL() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", invalidConfig(err)
	}
	if cfg.DatabaseURL == "" {
		return "", invalidConfig(errNoDatabase)
	}
	return cfg.DatabaseURL, nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				url, err := migrationURL()
				if err != nil {
					return err
				}
				if err := postgres.MigrateUp(url); err != nil {
					return err
				}
				return printVersion(cmd, url)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default one step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				url, err := migrationURL()
				if err != nil {
					return err
				}
				if err := postgres.MigrateDown(url, steps); err != nil {
					return err
				}
				return printVersion(cmd, url)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				url, err := migrationURL()
				if err != nil {
					return err
				}
				return printVersion(cmd, url)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, url string) error {
	v, dirty, err := postgres.MigrationVersion(url)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", v, dirty)
	return nil
}
