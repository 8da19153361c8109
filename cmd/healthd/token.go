package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/probekit/auth"
	"github.com/jonwraymond/probekit/internal/config"
)

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			resolver, err := cfg.Resolver()
			if err != nil {
				return err
			}
			defer resolver.Close()

			key, err := resolver.ResolveValue(cmd.Context(), cfg.Auth.JWTSecret)
			if err != nil {
				return fmt.Errorf("auth.jwt_secret: %w", err)
			}
			extra := map[string]any{}
			if cfg.Auth.JWTIssuer != "" {
				extra["iss"] = cfg.Auth.JWTIssuer
			}
			if cfg.Auth.JWTAudience != "" {
				extra["aud"] = cfg.Auth.JWTAudience
			}
			token, err := auth.SignHS256([]byte(key), subject, ttl, extra)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
