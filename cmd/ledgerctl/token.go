package main

import (
	"fmt"
	"time"

	"wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/service"

	"github.com/spf13/cobra"
)

func (c *cli) tokenCmd() *cobra.Command {
	var subject, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an actor token signed with the configured JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}

			cfg, err := c.loadConfig(c.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt.secret is not configured")
			}
			expiry := cfg.JWT.Expiry
			if ttl > 0 {
				expiry = ttl
			}

			token, exp, err := service.NewJWTTokenService(cfg.JWT.Secret, expiry, cfg.JWT.Issuer).Generate(subject, r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.asJSON {
				return printJSON(out, map[string]any{"token": token, "expires_at": exp.UTC().Format(time.RFC3339)})
			}
			fmt.Fprintln(out, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "sub", "", "Actor id (token subject)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "Actor role")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to jwt.expiry)")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the PostgreSQL DDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), postgres.Schema)
			return err
		},
	}
}
