// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/helpdesk/helpdesk/internal/config"
	"github.com/helpdesk/helpdesk/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the helpdesk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "helpdesk",
		Short: "Helpdesk - session-based authentication service",
		Long: `Helpdesk authenticates requests with Argon2id-hashed credentials
and server-side sessions kept in memory or in Redis.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/helpdesk/config.yaml if present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewAccountCmd())
	cmd.AddCommand(NewHashPasswordCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig loads the config file named by --config, or the XDG default
// when one exists, then flags (may be nil).
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path := configFile
	if path == "" {
		found, err := xdg.ExistingConfigFile()
		if err != nil {
			return nil, oops.With("operation", "locate default config").Wrap(err)
		}
		path = found
	}
	//nolint:wrapcheck // config errors are already coded
	return config.Load(path, flags)
}
