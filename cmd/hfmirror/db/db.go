package cmd

import (
	"context"
	"fmt"

	"github.com/cozy-creator/hf-mirror/internal/config"
	"github.com/cozy-creator/hf-mirror/internal/db"
	"github.com/cozy-creator/hf-mirror/internal/db/migrations"

	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/migrate"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "db",
	Short: "Utility for history database management",
}

func init() {
	migrationCmd := &cobra.Command{
		Use:   "migration",
		Short: "Utility for handling database migrations",
	}

	migrationCmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "create migration tables",
			RunE: withMigrator(func(ctx context.Context, cmd *cobra.Command, migrator *migrate.Migrator) error {
				return migrator.Init(ctx)
			}),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "migrate database",
			RunE: withMigrator(func(ctx context.Context, cmd *cobra.Command, migrator *migrate.Migrator) error {
				if err := migrator.Init(ctx); err != nil {
					return err
				}
				if err := migrator.Lock(ctx); err != nil {
					return err
				}
				defer migrator.Unlock(ctx) //nolint:errcheck

				group, err := migrator.Migrate(ctx)
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Fprintln(cmd.OutOrStdout(), "there are no new migrations to run (database is up to date)")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrated to %s\n", group)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "rollback the last migration group",
			RunE: withMigrator(func(ctx context.Context, cmd *cobra.Command, migrator *migrate.Migrator) error {
				if err := migrator.Lock(ctx); err != nil {
					return err
				}
				defer migrator.Unlock(ctx) //nolint:errcheck

				group, err := migrator.Rollback(ctx)
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Fprintln(cmd.OutOrStdout(), "there are no groups to roll back")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", group)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "lock",
			Short: "Lock the database",
			RunE: withMigrator(func(ctx context.Context, cmd *cobra.Command, migrator *migrate.Migrator) error {
				if err := migrator.Lock(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "locked")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "unlock",
			Short: "Unlock the database",
			RunE: withMigrator(func(ctx context.Context, cmd *cobra.Command, migrator *migrate.Migrator) error {
				if err := migrator.Unlock(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "unlocked")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the status of the migrations",
			RunE: withMigrator(func(ctx context.Context, cmd *cobra.Command, migrator *migrate.Migrator) error {
				status, err := migrator.MigrationsWithStatus(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrations: %s\n", status)
				fmt.Fprintf(cmd.OutOrStdout(), "unapplied migrations: %s\n", status.Unapplied())
				fmt.Fprintf(cmd.OutOrStdout(), "last migration group: %s\n", status.LastGroup())
				return nil
			}),
		},
		&cobra.Command{
			Use:   "mark-applied",
			Short: "Mark all migrations as applied without actually running them",
			RunE: withMigrator(func(ctx context.Context, cmd *cobra.Command, migrator *migrate.Migrator) error {
				if err := migrator.Init(ctx); err != nil {
					return err
				}

				group, err := migrator.Migrate(ctx, migrate.WithNopMigration())
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Fprintln(cmd.OutOrStdout(), "there are no new migrations to mark as applied")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marked as applied %s\n", group)
				return nil
			}),
		},
	)

	Cmd.AddCommand(migrationCmd)
}

type migratorFunc func(ctx context.Context, cmd *cobra.Command, migrator *migrate.Migrator) error

// withMigrator connects lazily so that the root command has loaded the
// configuration before the DSN is read.
func withMigrator(fn migratorFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.GetConfig()
		if err != nil {
			return err
		}

		if cfg.DB == nil || cfg.DB.DSN == "" {
			if err := cfg.CreateHomeDir(); err != nil {
				return err
			}
		}

		driver, err := db.NewConnection(cmd.Context(), cfg.DSN())
		if err != nil {
			return err
		}

		conn := driver.GetDB()
		defer conn.Close()

		conn.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithEnabled(false),
			bundebug.FromEnv(),
		))

		return fn(cmd.Context(), cmd, migrations.NewMigrator(conn))
	}
}
