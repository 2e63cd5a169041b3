package main

import (
	"fmt"
	"os"

	"tdadiffusion/adapters/db/postgres/migrations"
	"tdadiffusion/internal"
	"tdadiffusion/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	var databaseURL string

	rootCmd := &cobra.Command{
		Use:          "tda-migrate",
		Short:        "Manage the analysis database schema",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL)")

	connect := func() (*sqlx.DB, *migrations.Migrator, error) {
		url := databaseURL
		if url == "" {
			cfg, err := config.Load()
			if err != nil {
				return nil, nil, err
			}
			url = cfg.Database.URL
		}
		if url == "" {
			return nil, nil, fmt.Errorf("no database configured: set DATABASE_URL or --database-url")
		}
		db, err := sqlx.Connect("postgres", url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return db, migrations.NewMigrator(db.DB, internal.NewDefaultLogger()), nil
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, m, err := connect()
				if err != nil {
					return err
				}
				defer db.Close()

				applied, err := m.Up(cmd.Context())
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
				}
				for _, v := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", v)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Forget the latest applied migration (schema objects are kept)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, m, err := connect()
				if err != nil {
					return err
				}
				defer db.Close()

				version, err := m.Down(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s\n", version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, m, err := connect()
				if err != nil {
					return err
				}
				defer db.Close()

				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					if s.Modified {
						state += " (modified since applied)"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-30s %s\n", s.Version, s.Name, state)
				}
				return nil
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
