package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"binance-pattern-scanner/internal/patterns"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL         = "https://api.binance.com"
	DefaultRequestInterval = 200 * time.Millisecond
	DefaultTimeout         = 10 * time.Second

	klinesEndpoint   = "/api/v3/klines"
	tickerEndpoint   = "/api/v3/ticker/24hr"
	usedWeightHeader = "X-Mbx-Used-Weight-1m"
)

var (
	// ErrCircuitOpen is returned while Binance has us rate limited or banned
	ErrCircuitOpen = errors.New("binance: circuit breaker open")
	// ErrAPI wraps non-200 responses
	ErrAPI = errors.New("binance: api error")
)

// FetchError describes a failed candle fetch for one symbol/timeframe
type FetchError struct {
	Symbol    string
	Timeframe string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Symbol, e.Timeframe, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClientConfig configures the REST client
type ClientConfig struct {
	BaseURL         string
	RequestInterval time.Duration
	Timeout         time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	pacer      *rate.Limiter
	weights    *RateLimiter
	logger     zerolog.Logger
}

func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestInterval <= 0 {
		cfg.RequestInterval = DefaultRequestInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		pacer:      rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		weights:    NewRateLimiter(),
		logger:     logger.With().Str("component", "binance").Logger(),
	}
}

// RateLimiter exposes the weight tracker, mostly for status reporting
func (c *Client) RateLimiter() *RateLimiter {
	return c.weights
}

// Kline represents a candlestick
type Kline struct {
	OpenTime                 int64   `json:"openTime"`
	Open                     float64 `json:"open,string"`
	High                     float64 `json:"high,string"`
	Low                      float64 `json:"low,string"`
	Close                    float64 `json:"close,string"`
	Volume                   float64 `json:"volume,string"`
	CloseTime                int64   `json:"closeTime"`
	QuoteAssetVolume         float64 `json:"quoteAssetVolume,string"`
	NumberOfTrades           int     `json:"numberOfTrades"`
	TakerBuyBaseAssetVolume  float64 `json:"takerBuyBaseAssetVolume,string"`
	TakerBuyQuoteAssetVolume float64 `json:"takerBuyQuoteAssetVolume,string"`
}

// Ticker24hr represents 24hr ticker price change statistics.
// QuoteVolume is nil when Binance reports no value.
type Ticker24hr struct {
	Symbol             string   `json:"symbol"`
	PriceChangePercent float64  `json:"priceChangePercent,string"`
	LastPrice          float64  `json:"lastPrice,string"`
	Volume             float64  `json:"volume,string"`
	QuoteVolume        *float64 `json:"quoteVolume,string"`
	Count              int64    `json:"count"`
}

// get performs a paced, weight-tracked GET and returns the body
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.weights.IsCircuitOpen() {
		return nil, ErrCircuitOpen
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	if res := c.weights.TryAcquire(endpoint); !res.Acquired {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("reason", res.Reason).
			Dur("wait", res.WaitTime).
			Msg("Weight budget exhausted, waiting")
		if err := sleepCtx(ctx, res.WaitTime); err != nil {
			return nil, err
		}
		c.weights.RecordRequest(endpoint)
	}

	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if used, err := strconv.Atoi(resp.Header.Get(usedWeightHeader)); err == nil {
		c.weights.UpdateFromHeaders(used)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusTooManyRequests, http.StatusTeapot:
		c.weights.RecordRateLimitError(banUntil(resp.Header.Get("Retry-After"), string(body)))
		return nil, fmt.Errorf("%w: status %d: %s", ErrCircuitOpen, resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrAPI, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// banUntil converts a Retry-After header (seconds) or a "banned until" body into a ms timestamp
func banUntil(retryAfter, body string) int64 {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
		return time.Now().Add(time.Duration(secs) * time.Second).UnixMilli()
	}
	return ParseBanUntilFromError(body)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetKlines fetches candlestick data
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, klinesEndpoint, params)
	if err != nil {
		return nil, err
	}
	return ParseKlines(body)
}

// ParseKlines decodes a /api/v3/klines payload
func ParseKlines(body []byte) ([]Kline, error) {
	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	klines := make([]Kline, 0, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 11 {
			return nil, fmt.Errorf("error parsing klines: row %d has %d fields", i, len(raw))
		}
		openTime, ok1 := raw[0].(float64)
		closeTime, ok2 := raw[6].(float64)
		trades, ok3 := raw[8].(float64)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("error parsing klines: row %d has malformed integers", i)
		}
		klines = append(klines, Kline{
			OpenTime:                 int64(openTime),
			Open:                     parseFloat(raw[1]),
			High:                     parseFloat(raw[2]),
			Low:                      parseFloat(raw[3]),
			Close:                    parseFloat(raw[4]),
			Volume:                   parseFloat(raw[5]),
			CloseTime:                int64(closeTime),
			QuoteAssetVolume:         parseFloat(raw[7]),
			NumberOfTrades:           int(trades),
			TakerBuyBaseAssetVolume:  parseFloat(raw[9]),
			TakerBuyQuoteAssetVolume: parseFloat(raw[10]),
		})
	}
	return klines, nil
}

// Get24hrTickers fetches 24hr ticker data for all symbols
func (c *Client) Get24hrTickers(ctx context.Context) ([]Ticker24hr, error) {
	body, err := c.get(ctx, tickerEndpoint, nil)
	if err != nil {
		return nil, err
	}

	var tickers []Ticker24hr
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("error parsing tickers: %w", err)
	}
	return tickers, nil
}

// TopVolumePairs returns up to n symbols quoted in quote, by 24h quote volume descending
func (c *Client) TopVolumePairs(ctx context.Context, quote string, n int) ([]string, error) {
	tickers, err := c.Get24hrTickers(ctx)
	if err != nil {
		return nil, err
	}
	return RankByQuoteVolume(tickers, quote, n), nil
}

// RankByQuoteVolume filters tickers by quote suffix and sorts them by quote volume
func RankByQuoteVolume(tickers []Ticker24hr, quote string, n int) []string {
	quote = strings.ToUpper(quote)

	ranked := make([]Ticker24hr, 0, len(tickers))
	for _, t := range tickers {
		if t.QuoteVolume == nil || *t.QuoteVolume <= 0 {
			continue
		}
		if !strings.HasSuffix(t.Symbol, quote) || len(t.Symbol) == len(quote) {
			continue
		}
		ranked = append(ranked, t)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].QuoteVolume > *ranked[j].QuoteVolume
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	symbols := make([]string, len(ranked))
	for i, t := range ranked {
		symbols[i] = t.Symbol
	}
	return symbols
}

// Fetch returns the latest limit candles for symbol/timeframe as a Series
func (c *Client) Fetch(ctx context.Context, symbol, timeframe string, limit int) (patterns.Series, error) {
	klines, err := c.GetKlines(ctx, symbol, timeframe, limit)
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
func (c *Client) TopSymbols(ctx context.Context, quote string, n int) ([]string, error) {
	return c.TopVolumePairs(ctx, quote, n)
}

// KlinesToSeries converts raw klines into a validated Series
func KlinesToSeries(klines []Kline) (patterns.Series, error) {
	candles := make([]patterns.Candle, len(klines))
	for i, k := range klines {
		candles[i] = patterns.Candle{
			Timestamp: k.OpenTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		}
	}
	return patterns.NewSeries(candles)
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
