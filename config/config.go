package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"binance-pattern-scanner/internal/patterns"

	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when no config file is given
var DefaultPaths = []string{"config.yaml", "config.yml", "config.json"}

type Config struct {
	BinanceConfig      BinanceConfig      `json:"binance" yaml:"binance"`
	ScannerConfig      ScannerConfig      `json:"scanner" yaml:"scanner"`
	PatternsConfig     patterns.Config    `json:"patterns" yaml:"patterns"`
	LoggingConfig      LoggingConfig      `json:"logging" yaml:"logging"`
	RedisConfig        RedisConfig        `json:"redis" yaml:"redis"`
	ServerConfig       ServerConfig       `json:"server" yaml:"server"`
	AuthConfig         AuthConfig         `json:"auth" yaml:"auth"`
	VaultConfig        VaultConfig        `json:"vault" yaml:"vault"`
	NotificationConfig NotificationConfig `json:"notification" yaml:"notification"`
}

type BinanceConfig struct {
	BaseURL         string        `json:"base_url" yaml:"base_url"`
	RequestInterval time.Duration `json:"request_interval" yaml:"request_interval"` // pause between REST calls
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	MockMode        bool          `json:"mock_mode" yaml:"mock_mode"` // Use simulated data when Binance API is unavailable
}

type ScannerConfig struct {
	Quote        string        `json:"quote" yaml:"quote"`
	TopN         int           `json:"top_n" yaml:"top_n"`
	Symbols      []string      `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Timeframes   []string      `json:"timeframes" yaml:"timeframes"`
	Limit        int           `json:"limit" yaml:"limit"`
	WorkerCount  int           `json:"worker_count" yaml:"worker_count"`
	ScanInterval time.Duration `json:"scan_interval" yaml:"scan_interval"`
	ScanTimeout  time.Duration `json:"scan_timeout" yaml:"scan_timeout"`
	CacheTTL     time.Duration `json:"cache_ttl" yaml:"cache_ttl"` // candle cache, 0 disables
}

type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`   // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output" yaml:"output"` // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format" yaml:"json_format"`
}

// RedisConfig holds Redis configuration for the candle cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	PoolSize int    `json:"pool_size" yaml:"pool_size"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `json:"port" yaml:"port"`
	Host            string        `json:"host" yaml:"host"`
	AllowedOrigins  string        `json:"allowed_origins" yaml:"allowed_origins"` // comma separated, "*" for any
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	ScanTriggerRate time.Duration `json:"scan_trigger_rate" yaml:"scan_trigger_rate"` // min gap between POST /api/scan
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled             bool          `json:"enabled" yaml:"enabled"`
	JWTSecret           string        `json:"jwt_secret" yaml:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration" yaml:"access_token_duration"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Address    string `json:"address" yaml:"address"`
	Token      string `json:"token" yaml:"token"`
	MountPath  string `json:"mount_path" yaml:"mount_path"`   // KV v2 mount
	SecretPath string `json:"secret_path" yaml:"secret_path"` // secret holding jwt_secret
	CACert     string `json:"ca_cert" yaml:"ca_cert"`
}

type NotificationConfig struct {
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	ScanSummary bool           `json:"scan_summary" yaml:"scan_summary"` // one message per completed scan
	Telegram    TelegramConfig `json:"telegram" yaml:"telegram"`
	Discord     DiscordConfig  `json:"discord" yaml:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"bot_token" yaml:"bot_token"`
	ChatID   string `json:"chat_id" yaml:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
}

// Default returns a configuration with the scanner defaults
func Default() *Config {
	return &Config{
		BinanceConfig: BinanceConfig{
			BaseURL:         "https://api.binance.com",
			RequestInterval: 200 * time.Millisecond,
			Timeout:         10 * time.Second,
		},
		ScannerConfig: ScannerConfig{
			Quote:        "USDT",
			TopN:         30,
			Timeframes:   []string{"4h", "1d"},
			Limit:        50,
			WorkerCount:  4,
			ScanInterval: time.Hour,
			ScanTimeout:  5 * time.Minute,
			CacheTTL:     time.Minute,
		},
		PatternsConfig: patterns.DefaultConfig(),
		LoggingConfig: LoggingConfig{
			Level:  "INFO",
			Output: "stderr",
		},
		RedisConfig: RedisConfig{
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ScanTriggerRate: 30 * time.Second,
		},
		AuthConfig: AuthConfig{
			AccessTokenDuration: 24 * time.Hour,
		},
		VaultConfig: VaultConfig{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "pattern-scanner/auth",
		},
	}
}

// Load reads path (or the first default path that exists) over the defaults,
// then applies environment overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, p := range DefaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads one file over the defaults without environment overrides
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	if yamlErr := yaml.Unmarshal(data, cfg); yamlErr != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("error parsing config file %s (tried YAML and JSON): %w", filename, errors.Join(yamlErr, jsonErr))
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.RequestInterval = getEnvDurationOrDefault("BINANCE_REQUEST_INTERVAL", cfg.BinanceConfig.RequestInterval)
	cfg.BinanceConfig.MockMode = getEnvBoolOrDefault("MOCK_MODE", cfg.BinanceConfig.MockMode)

	cfg.ScannerConfig.Quote = getEnvOrDefault("SCANNER_QUOTE", cfg.ScannerConfig.Quote)
	cfg.ScannerConfig.TopN = getEnvIntOrDefault("SCANNER_TOP_N", cfg.ScannerConfig.TopN)
	cfg.ScannerConfig.Symbols = getEnvListOrDefault("SCANNER_SYMBOLS", cfg.ScannerConfig.Symbols)
	cfg.ScannerConfig.Timeframes = getEnvListOrDefault("SCANNER_TIMEFRAMES", cfg.ScannerConfig.Timeframes)
	cfg.ScannerConfig.Limit = getEnvIntOrDefault("SCANNER_LIMIT", cfg.ScannerConfig.Limit)
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKERS", cfg.ScannerConfig.WorkerCount)
	cfg.ScannerConfig.ScanInterval = getEnvDurationOrDefault("SCANNER_INTERVAL", cfg.ScannerConfig.ScanInterval)
	cfg.ScannerConfig.CacheTTL = getEnvDurationOrDefault("SCANNER_CACHE_TTL", cfg.ScannerConfig.CacheTTL)

	cfg.PatternsConfig.Lookback = getEnvIntOrDefault("PATTERN_LOOKBACK", cfg.PatternsConfig.Lookback)
	cfg.PatternsConfig.ProximityThreshold = getEnvFloatOrDefault("PATTERN_PROXIMITY_THRESHOLD", cfg.PatternsConfig.ProximityThreshold)
	cfg.PatternsConfig.RequireProximity = getEnvBoolOrDefault("PATTERN_REQUIRE_PROXIMITY", cfg.PatternsConfig.RequireProximity)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)

	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	cfg.AuthConfig.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.AuthConfig.AccessTokenDuration)

	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)

	cfg.NotificationConfig.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.ScanSummary = getEnvBoolOrDefault("NOTIFICATIONS_SCAN_SUMMARY", cfg.NotificationConfig.ScanSummary)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvBoolOrDefault("DISCORD_ENABLED", cfg.NotificationConfig.Discord.Enabled)
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ScannerConfig.Limit < 3 {
		return fmt.Errorf("scanner.limit must be at least 3, got %d", c.ScannerConfig.Limit)
	}
	if len(c.ScannerConfig.Symbols) == 0 && c.ScannerConfig.TopN <= 0 {
		return fmt.Errorf("scanner.top_n must be positive when no symbols are listed")
	}
	if len(c.ScannerConfig.Timeframes) == 0 {
		return fmt.Errorf("scanner.timeframes must not be empty")
	}
	for _, tf := range c.ScannerConfig.Timeframes {
		if !validTimeframe(tf) {
			return fmt.Errorf("scanner.timeframes: unsupported interval %q", tf)
		}
	}
	if c.ScannerConfig.WorkerCount <= 0 {
		return fmt.Errorf("scanner.worker_count must be positive")
	}
	if c.ScannerConfig.ScanInterval <= 0 {
		return fmt.Errorf("scanner.scan_interval must be positive")
	}
	if err := c.PatternsConfig.Validate(); err != nil {
		return fmt.Errorf("patterns: %w", err)
	}
	if c.PatternsConfig.Lookback > c.ScannerConfig.Limit {
		return fmt.Errorf("patterns.lookback (%d) cannot exceed scanner.limit (%d)", c.PatternsConfig.Lookback, c.ScannerConfig.Limit)
	}
	if c.ServerConfig.Port <= 0 || c.ServerConfig.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.ServerConfig.Port)
	}
	if c.RedisConfig.Enabled && c.RedisConfig.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}
	if c.AuthConfig.Enabled && c.AuthConfig.JWTSecret == "" && !c.VaultConfig.Enabled {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled without vault")
	}
	if c.VaultConfig.Enabled && c.VaultConfig.Address == "" {
		return fmt.Errorf("vault.address is required when vault is enabled")
	}
	// with vault on, tokens may arrive later from the secret store
	if c.NotificationConfig.Telegram.Enabled && c.NotificationConfig.Telegram.ChatID == "" {
		return fmt.Errorf("notification.telegram requires chat_id")
	}
	if c.NotificationConfig.Telegram.Enabled && c.NotificationConfig.Telegram.BotToken == "" && !c.VaultConfig.Enabled {
		return fmt.Errorf("notification.telegram requires bot_token")
	}
	if c.NotificationConfig.Discord.Enabled && c.NotificationConfig.Discord.WebhookURL == "" && !c.VaultConfig.Enabled {
		return fmt.Errorf("notification.discord requires webhook_url")
	}
	return nil
}

var timeframes = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1M": true,
}

func validTimeframe(tf string) bool {
	return timeframes[tf]
}

// SaveToFile writes the configuration as YAML, or JSON for a .json path
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// GenerateSampleConfig writes the defaults to filename
func GenerateSampleConfig(filename string) error {
	return Default().SaveToFile(filename)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
