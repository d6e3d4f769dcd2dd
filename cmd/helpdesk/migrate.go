// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/helpdesk/helpdesk/internal/config"
	"github.com/helpdesk/helpdesk/internal/store"
)

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand. Without a subcommand it
// applies all pending migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Manage the accounts schema in PostgreSQL. Without a subcommand,
apply all pending migrations.`,
		RunE: runMigrateUp,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops the accounts table)",
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			cmd.Println("Rolling back migrations...")
			if err := m.Down(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
			}
			cmd.Println("Rollback completed successfully")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			version, dirty, err := m.Version()
			if err != nil {
				return oops.With("operation", "read schema version").Wrap(err)
			}
			pending, err := m.PendingMigrations()
			if err != nil {
				return oops.With("operation", "list pending migrations").Wrap(err)
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			cmd.Printf("version: %d (%s), pending: %d\n", version, state, len(pending))
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return oops.With("operation", "force version").Wrap(err)
			}
			cmd.Printf("Forced schema version %d\n", version)
			return nil
		}),
	})

	return cmd
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	return withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
		pending, err := m.PendingMigrations()
		if err != nil {
			return oops.With("operation", "list pending migrations").Wrap(err)
		}
		if len(pending) == 0 {
			cmd.Println("No pending migrations")
			return nil
		}
		cmd.Printf("Applying %d migration(s)...\n", len(pending))
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})(cmd, args)
}

// withMigrator opens a Migrator for the configured database around fn.
func withMigrator(fn func(cmd *cobra.Command, m Migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		databaseURL, err := getDatabaseURL()
		if err != nil {
			return err
		}
		m, err := newMigrator(databaseURL)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				cmd.PrintErrf("warning: %v\n", closeErr)
			}
		}()
		return fn(cmd, m, args)
	}
}

// getDatabaseURL returns database.url from the config file, or DATABASE_URL.
func getDatabaseURL() (string, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("database.url or the %s environment variable is required", config.EnvDatabaseURL)
	}
	return cfg.Database.URL, nil
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}
