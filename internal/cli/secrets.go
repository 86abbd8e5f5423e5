package cli

import (
	"context"
	"errors"
	"fmt"

	"binance-pattern-scanner/internal/vault"

	"github.com/spf13/cobra"
)

var errNoSecrets = errors.New("no secrets set in configuration")

func newSecretsCmd(rc *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage scanner secrets in Vault",
	}
	cmd.AddCommand(newSecretsPushCmd(rc))
	return cmd
}

func newSecretsPushCmd(rc *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Store the configured secrets in Vault",
		Long: `Write auth.jwt_secret, notification.telegram.bot_token and
notification.discord.webhook_url from the configuration (or environment) to the
Vault KV v2 secret at vault.mount_path/vault.secret_path, then read them back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.load()
			if err != nil {
				return err
			}
			if !cfg.VaultConfig.Enabled {
				return vault.ErrDisabled
			}

			secrets := vault.Secrets{
				JWTSecret:         cfg.AuthConfig.JWTSecret,
				TelegramBotToken:  cfg.NotificationConfig.Telegram.BotToken,
				DiscordWebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
			}
			if secrets == (vault.Secrets{}) {
				return errNoSecrets
			}

			vc, err := vault.NewClient(cfg.VaultConfig)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), vaultTimeout)
			defer cancel()

			if err := vc.StoreSecrets(ctx, secrets); err != nil {
				return err
			}

			// read back from Vault, not the local copy
			vc.ClearCache()
			stored, err := vc.GetSecrets(ctx)
			if err != nil {
				return fmt.Errorf("verify stored secrets: %w", err)
			}
			if *stored != secrets {
				return fmt.Errorf("verify stored secrets: vault returned different values")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Secrets stored in Vault (%s)\n", cfg.VaultConfig.SecretPath)
			fmt.Fprintf(out, "  jwt_secret: %t\n", secrets.JWTSecret != "")
			fmt.Fprintf(out, "  telegram_bot_token: %t\n", secrets.TelegramBotToken != "")
			fmt.Fprintf(out, "  discord_webhook_url: %t\n", secrets.DiscordWebhookURL != "")
			return nil
		},
	}
}
