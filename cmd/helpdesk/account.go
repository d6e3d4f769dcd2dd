// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/helpdesk/helpdesk/internal/auth"
	"github.com/helpdesk/helpdesk/internal/auth/memory"
	"github.com/helpdesk/helpdesk/internal/config"
)

// accountStoreOpener is replaced in tests.
var accountStoreOpener = openAccountStore

// NewAccountCmd creates the account subcommand.
func NewAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newAccountCreateCmd())
	return cmd
}

func newAccountCreateCmd() *cobra.Command {
	var principal string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account; the password is read from stdin",
		Long: `Create an account in the PostgreSQL account store. The password is
the first line of standard input.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("database.url or the %s environment variable is required", config.EnvDatabaseURL)
			}
			cfg.Accounts.Store = config.StorePostgres

			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return createAccount(cmd.Context(), cmd, cfg, principal, secret)
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "", "account principal (e.g. an email address)")
	//nolint:errcheck // flag is defined above
	cmd.MarkFlagRequired("principal")
	return cmd
}

func createAccount(ctx context.Context, cmd *cobra.Command, cfg *config.Config, principal, secret string) error {
	accounts, err := accountStoreOpener(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open account store").Wrap(err)
	}
	defer accounts.Close()

	hasher, err := auth.NewArgon2idHasher()
	if err != nil {
		return oops.With("operation", "create hasher").Wrap(err)
	}
	// No session is issued here, the session store only satisfies the Keyring.
	keyring, err := auth.NewKeyring(accounts, hasher, memory.NewSessionStore())
	if err != nil {
		return oops.With("operation", "create keyring").Wrap(err)
	}

	id, err := keyring.CreateAccount(ctx, principal, secret)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicatePrincipal) {
			cmd.PrintErrf("account %q already exists\n", principal)
		}
		return err
	}
	cmd.Printf("Created account %s (%s)\n", principal, id)
	return nil
}

// readSecret returns the first line of r without its line ending.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("SECRET_READ_FAILED").Wrap(err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", oops.Code("SECRET_READ_FAILED").Errorf("no password on standard input")
	}
	return secret, nil
}
