package binance

import (
	"time"

	"binance-pattern-scanner/config"

	"github.com/rs/zerolog"
)

// NewMarketClient builds the client selected by cfg: the deterministic mock in
// mock mode, the REST client otherwise
func NewMarketClient(cfg config.BinanceConfig, logger zerolog.Logger) MarketClient {
	if cfg.MockMode {
		logger.Info().Str("component", "binance").Msg("Using mock market data")
		return NewMockClient(time.Time{})
	}

	return NewClient(ClientConfig{
		BaseURL:         cfg.BaseURL,
		RequestInterval: cfg.RequestInterval,
		Timeout:         cfg.Timeout,
	}, logger)
}
