package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"binance-pattern-scanner/config"

	"github.com/hashicorp/vault/api"
)

// ErrDisabled is returned by reads when Vault is not enabled
var ErrDisabled = errors.New("vault is disabled")

// ErrNotFound is returned when the scanner secret does not exist
var ErrNotFound = errors.New("secret not found")

// Secrets holds the scanner credentials stored in Vault
type Secrets struct {
	JWTSecret         string `json:"jwt_secret"`
	TelegramBotToken  string `json:"telegram_bot_token"`
	DiscordWebhookURL string `json:"discord_webhook_url"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cached *Secrets
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// GetSecrets reads the scanner secret from the KV v2 engine. Results are cached
// until ClearCache or StoreSecrets.
func (c *Client) GetSecrets(ctx context.Context) (*Secrets, error) {
	c.mu.RLock()
	if c.cached != nil {
		s := *c.cached
		c.mu.RUnlock()
		return &s, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, ErrDisabled
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.dataPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, ErrNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at %s", c.dataPath())
	}

	s := &Secrets{
		JWTSecret:         getString(data, "jwt_secret"),
		TelegramBotToken:  getString(data, "telegram_bot_token"),
		DiscordWebhookURL: getString(data, "discord_webhook_url"),
	}

	c.mu.Lock()
	cp := *s
	c.cached = &cp
	c.mu.Unlock()

	return s, nil
}

// StoreSecrets writes the scanner secret to the KV v2 engine
func (c *Client) StoreSecrets(ctx context.Context, s Secrets) error {
	if !c.config.Enabled {
		return ErrDisabled
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"jwt_secret":          s.JWTSecret,
			"telegram_bot_token":  s.TelegramBotToken,
			"discord_webhook_url": s.DiscordWebhookURL,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.dataPath(), secretData); err != nil {
		return fmt.Errorf("failed to store secret in vault: %w", err)
	}

	c.mu.Lock()
	c.cached = &s
	c.mu.Unlock()

	return nil
}

// ApplyToConfig overlays non-empty Vault values onto cfg. A disabled Vault
// leaves cfg untouched.
func (c *Client) ApplyToConfig(ctx context.Context, cfg *config.Config) error {
	if !c.config.Enabled {
		return nil
	}

	s, err := c.GetSecrets(ctx)
	if err != nil {
		return err
	}

	if s.JWTSecret != "" {
		cfg.AuthConfig.JWTSecret = s.JWTSecret
	}
	if s.TelegramBotToken != "" {
		cfg.NotificationConfig.Telegram.BotToken = s.TelegramBotToken
	}
	if s.DiscordWebhookURL != "" {
		cfg.NotificationConfig.Discord.WebhookURL = s.DiscordWebhookURL
	}
	return nil
}

// ClearCache drops the cached secret
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// dataPath returns the KV v2 data path for the scanner secret
func (c *Client) dataPath() string {
	mount := strings.Trim(c.config.MountPath, "/")
	if mount == "" {
		mount = "secret"
	}
	return fmt.Sprintf("%s/data/%s", mount, strings.Trim(c.config.SecretPath, "/"))
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
