package binance

import (
	"context"

	"binance-pattern-scanner/internal/patterns"
)

// MarketClient defines the read-only Binance market data operations
type MarketClient interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
	Get24hrTickers(ctx context.Context) ([]Ticker24hr, error)
	TopVolumePairs(ctx context.Context, quote string, n int) ([]string, error)
	Fetch(ctx context.Context, symbol, timeframe string, limit int) (patterns.Series, error)
	TopSymbols(ctx context.Context, quote string, n int) ([]string, error)
}

// Ensure both Client and MockClient implement MarketClient
var _ MarketClient = (*Client)(nil)
var _ MarketClient = (*MockClient)(nil)
