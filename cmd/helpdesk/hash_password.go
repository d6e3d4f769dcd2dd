// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/helpdesk/helpdesk/internal/auth"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print the stored hash for a password read from stdin",
		Long: `Hash the first line of standard input with the current Argon2id
parameters and print the encoded hash, for seeding accounts by hand.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := auth.ValidateSecret(secret); err != nil {
				return err
			}
			hasher, err := auth.NewArgon2idHasher()
			if err != nil {
				return err
			}
			cmd.Println(hasher.Hash(secret))
			return nil
		},
	}
}
