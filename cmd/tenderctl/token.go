package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mustafabeshara/Dashboard2-sub000/config"
	"github.com/Mustafabeshara/Dashboard2-sub000/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Mint a bearer token signed with JWT_SECRET",
	Long: `Mint an HS256 token for the given subject using the gateway's JWT_SECRET
and JWT_ISSUER. The subject becomes the user charged for per-user budgets.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New(cmd.Context())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}

		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := middleware.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer).SignToken(args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
