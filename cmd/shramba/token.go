package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/shramba/internal/auth"
	"github.com/erazemk/shramba/internal/store"
)

var tokenCmd = &cobra.Command{
	Use:   "token <owner-id>",
	Short: "Issue an API token for an owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")

		secret := cfg.Auth.JWTSecret
		if secret == "" {
			database, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			secret, err = store.EnsureSecret(cmd.Context(), database, store.SettingJWTSecret)
			if err != nil {
				return err
			}
		}

		token, err := auth.GenerateToken(secret, args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", auth.TokenExpiry, "token lifetime")
}
