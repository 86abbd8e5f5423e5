package binance

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"binance-pattern-scanner/internal/patterns"
)

// MockClient provides deterministic simulated market data for mock mode and tests.
// The same symbol, interval and limit always yield the same candles.
type MockClient struct {
	prices map[string]float64
	anchor time.Time
}

// NewMockClient creates a mock client whose newest candle closes at anchor.
// A zero anchor uses the current time.
func NewMockClient(anchor time.Time) *MockClient {
	if anchor.IsZero() {
		anchor = time.Now()
	}

	return &MockClient{
		anchor: anchor.UTC(),
		prices: map[string]float64{
			"BTCUSDT":  104500.00,
			"ETHUSDT":  3900.00,
			"BNBUSDT":  710.00,
			"SOLUSDT":  220.00,
			"XRPUSDT":  2.35,
			"ADAUSDT":  1.05,
			"DOGEUSDT": 0.40,
			"AVAXUSDT": 50.00,
			"DOTUSDT":  9.50,
			"LINKUSDT": 28.00,
			"UNIUSDT":  17.50,
			"ATOMUSDT": 12.00,
			"LTCUSDT":  115.00,
			"ETCUSDT":  32.00,
			"XLMUSDT":  0.45,
			"NEARUSDT": 7.00,
			"APTUSDT":  13.50,
			"ARBUSDT":  1.10,
			"OPUSDT":   2.80,
		},
	}
}

// IntervalDuration maps a Binance interval string to its duration
func IntervalDuration(interval string) (time.Duration, bool) {
	switch interval {
	case "1m":
		return time.Minute, true
	case "3m":
		return 3 * time.Minute, true
	case "5m":
		return 5 * time.Minute, true
	case "15m":
		return 15 * time.Minute, true
	case "30m":
		return 30 * time.Minute, true
	case "1h":
		return time.Hour, true
	case "2h":
		return 2 * time.Hour, true
	case "4h":
		return 4 * time.Hour, true
	case "6h":
		return 6 * time.Hour, true
	case "8h":
		return 8 * time.Hour, true
	case "12h":
		return 12 * time.Hour, true
	case "1d":
		return 24 * time.Hour, true
	case "3d":
		return 72 * time.Hour, true
	case "1w":
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

func seedFor(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return int64(h.Sum64() & math.MaxInt64)
}

func (mc *MockClient) basePrice(symbol string) float64 {
	if p, ok := mc.prices[symbol]; ok {
		return p
	}
	return 100.0
}

// GetKlines returns simulated candlestick data
func (mc *MockClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	step, ok := IntervalDuration(interval)
	if !ok {
		step = time.Minute
	}
	rng := rand.New(rand.NewSource(seedFor(symbol, interval)))
	basePrice := mc.basePrice(symbol)
	end := mc.anchor.Truncate(step)

	klines := make([]Kline, limit)
	currentPrice := basePrice
	for i := 0; i < limit; i++ {
		openTime := end.Add(-time.Duration(limit-i) * step)
		closeTime := openTime.Add(step - time.Millisecond)

		volatility := 0.02
		open := currentPrice
		close := open * (1 + (rng.Float64()-0.5)*volatility*2)
		high := math.Max(open, close) * (1 + rng.Float64()*volatility)
		low := math.Min(open, close) * (1 - rng.Float64()*volatility)
		volume := 1000 + rng.Float64()*5000

		klines[i] = Kline{
			OpenTime:                 openTime.UnixMilli(),
			Open:                     open,
			High:                     high,
			Low:                      low,
			Close:                    close,
			Volume:                   volume,
			CloseTime:                closeTime.UnixMilli(),
			QuoteAssetVolume:         volume * close,
			NumberOfTrades:           100 + rng.Intn(1000),
			TakerBuyBaseAssetVolume:  volume * 0.5,
			TakerBuyQuoteAssetVolume: volume * close * 0.5,
		}

		currentPrice = close
	}

	return klines, nil
}

// Get24hrTickers returns simulated 24hr ticker data, sorted by symbol
func (mc *MockClient) Get24hrTickers(ctx context.Context) ([]Ticker24hr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(mc.prices))
	for symbol := range mc.prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	tickers := make([]Ticker24hr, 0, len(symbols))
	for _, symbol := range symbols {
		price := mc.prices[symbol]
		rng := rand.New(rand.NewSource(seedFor(symbol, "24hr")))
		volume := 1e6 + rng.Float64()*1e7
		quoteVolume := volume * price

		tickers = append(tickers, Ticker24hr{
			Symbol:             symbol,
			PriceChangePercent: (rng.Float64() - 0.5) * 10,
			LastPrice:          price,
			Volume:             volume,
			QuoteVolume:        &quoteVolume,
			Count:              100000 + rng.Int63n(100000),
		})
	}

	return tickers, nil
}

// TopVolumePairs ranks the simulated tickers by quote volume
func (mc *MockClient) TopVolumePairs(ctx context.Context, quote string, n int) ([]string, error) {
	tickers, err := mc.Get24hrTickers(ctx)
	if err != nil {
		return nil, err
	}
	return RankByQuoteVolume(tickers, quote, n), nil
}

// Fetch returns simulated candles as a Series
func (mc *MockClient) Fetch(ctx context.Context, symbol, timeframe string, limit int) (patterns.Series, error) {
	klines, err := mc.GetKlines(ctx, symbol, timeframe, limit)
	if err != nil {
		return patterns.Series{}, &FetchError{Symbol: symbol, Timeframe: timeframe, Err: err}
	}
	series, err := KlinesToSeries(klines)
	if err != nil {
		return patterns.Series{}, &FetchError{Symbol: symbol, Timeframe: timeframe, Err: err}
	}
	return series, nil
}

// TopSymbols is TopVolumePairs under the provider name
func (mc *MockClient) TopSymbols(ctx context.Context, quote string, n int) ([]string, error) {
	return mc.TopVolumePairs(ctx, quote, n)
}
