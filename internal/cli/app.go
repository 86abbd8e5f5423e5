package cli

import (
	"context"
	"time"

	"binance-pattern-scanner/config"
	"binance-pattern-scanner/internal/binance"
	"binance-pattern-scanner/internal/cache"
	"binance-pattern-scanner/internal/events"
	"binance-pattern-scanner/internal/notification"
	"binance-pattern-scanner/internal/scanner"
	"binance-pattern-scanner/internal/vault"

	"github.com/rs/zerolog"
)

const vaultTimeout = 5 * time.Second

// app holds the wired runtime shared by scan and serve
type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	market      binance.MarketClient
	provider    scanner.MarketDataProvider
	cacheSvc    *cache.CacheService
	rateLimiter *binance.RateLimiter
	bus         *events.EventBus
	notifier    *notification.Manager
	vault       *vault.Client // nil when vault is disabled
	scanner     *scanner.Scanner
}

// scannerConfig maps the file configuration onto the scanner
func scannerConfig(cfg *config.Config) scanner.Config {
	return scanner.Config{
		Quote:        cfg.ScannerConfig.Quote,
		TopN:         cfg.ScannerConfig.TopN,
		Symbols:      cfg.ScannerConfig.Symbols,
		Timeframes:   cfg.ScannerConfig.Timeframes,
		Limit:        cfg.ScannerConfig.Limit,
		WorkerCount:  cfg.ScannerConfig.WorkerCount,
		ScanInterval: cfg.ScannerConfig.ScanInterval,
		ScanTimeout:  cfg.ScannerConfig.ScanTimeout,
		Patterns:     cfg.PatternsConfig,
	}
}

// applyVault overlays secrets from Vault. Failures keep the file values.
// The client is returned for health reporting, nil when vault is off.
func applyVault(cfg *config.Config, logger zerolog.Logger) *vault.Client {
	if !cfg.VaultConfig.Enabled {
		return nil
	}

	vc, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Warn().Err(err).Msg("Vault client unavailable, using configured secrets")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), vaultTimeout)
	defer cancel()

	if err := vc.ApplyToConfig(ctx, cfg); err != nil {
		logger.Warn().Err(err).Str("path", cfg.VaultConfig.SecretPath).Msg("Failed to read secrets from Vault, using configured secrets")
		return vc
	}
	logger.Info().Msg("Secrets loaded from Vault")
	return vc
}

// newApp wires market data, caching, events, notifications and the scanner
func newApp(cfg *config.Config, logger zerolog.Logger) *app {
	a := &app{
		cfg:    cfg,
		logger: logger,
		bus:    events.NewEventBus(),
	}

	a.vault = applyVault(cfg, logger)

	a.market = binance.NewMarketClient(cfg.BinanceConfig, logger)
	if c, ok := a.market.(*binance.Client); ok {
		a.rateLimiter = c.RateLimiter()
	}

	a.provider = a.market
	if ttl := cfg.ScannerConfig.CacheTTL; ttl > 0 {
		a.provider = scanner.NewCachedProvider(a.market, a.seriesCache(ttl), logger)
	}

	a.notifier = notification.NewManagerFromConfig(cfg.NotificationConfig, logger)
	if a.notifier.IsEnabled() {
		a.notifier.Attach(a.bus)
		logger.Info().Msg("Signal notifications enabled")
	}

	a.scanner = scanner.NewScanner(a.provider, scannerConfig(cfg), a.bus, logger)
	return a
}

// seriesCache prefers Redis and falls back to the in-process cache
func (a *app) seriesCache(ttl time.Duration) scanner.SeriesCache {
	if a.cfg.RedisConfig.Enabled {
		cs, err := cache.NewCacheService(a.cfg.RedisConfig, a.logger)
		if err == nil {
			a.cacheSvc = cs
			return cache.NewRedisSeriesCache(cs, ttl, a.logger)
		}
		a.logger.Warn().Err(err).Msg("Redis cache unavailable, using in-memory cache")
	}

	mem := scanner.NewMemoryCache(ttl)
	a.bus.Subscribe(events.EventScanCompleted, func(events.Event) { mem.CleanupExpired() })
	return mem
}

func (a *app) close() {
	if a.cacheSvc != nil {
		if err := a.cacheSvc.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}
