package cli

import (
	"fmt"
	"time"

	"binance-pattern-scanner/internal/auth"

	"github.com/spf13/cobra"
)

func newTokenCmd(rc *rootOptions) *cobra.Command {
	var (
		clientID string
		scope    string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API access token",
		Long: `Sign a bearer token for the HTTP API with auth.jwt_secret (or the Vault secret).

Scopes:
  read - GET endpoints and /ws
  scan - read plus POST /api/scan`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scope != auth.ScopeRead && scope != auth.ScopeScan {
				return fmt.Errorf("unknown scope %q", scope)
			}

			cfg, err := rc.load()
			if err != nil {
				return err
			}
			applyVault(cfg, newLogger(cfg, "token"))

			duration := cfg.AuthConfig.AccessTokenDuration
			if ttl > 0 {
				duration = ttl
			}

			m, err := auth.NewJWTManager(cfg.AuthConfig.JWTSecret, duration)
			if err != nil {
				return err
			}

			resp, err := m.GenerateAccessToken(auth.ClientClaims{ClientID: clientID, Scope: scope})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "cli", "client identifier stored in the token")
	cmd.Flags().StringVar(&scope, "scope", auth.ScopeRead, "token scope: read or scan")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.access_token_duration)")
	return cmd
}
