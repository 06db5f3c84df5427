package server

import (
	"fmt"

	"github.com/mwantia/promptgallery/pkg/db/migrations"
	"github.com/mwantia/promptgallery/pkg/db/store"
	"github.com/spf13/cobra"

	config "github.com/mwantia/promptgallery/internal/config/server"
)

func NewDatabaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Manage the catalog database schema",
	}

	cmd.AddCommand(newDatabaseMigrateCommand())
	cmd.AddCommand(newDatabaseStatusCommand())
	cmd.AddCommand(newDatabaseRollbackCommand())

	return cmd
}

func newDatabaseMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				if err := m.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
				return nil
			})
		},
	}
}

func newDatabaseStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				for _, status := range statuses {
					state := "pending"
					if status.Applied {
						state = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-8s %s\n", status.Version, state, status.Description)
				}
				return nil
			})
		},
	}
}

func newDatabaseRollbackCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				for i := 0; i < steps; i++ {
					if err := m.Rollback(cmd.Context()); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(m *migrations.Migrator) error) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path:     cfg.Database.SQLite.Path,
		LogLevel: store.ParseLogLevel(cfg.Database.LogLevel),
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Connect(cmd.Context()); err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}

	return fn(migrations.NewMigrator(st.DB()))
}
