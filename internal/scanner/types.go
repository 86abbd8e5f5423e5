package scanner

import (
	"time"

	"binance-pattern-scanner/internal/patterns"
)

const (
	DefaultQuote        = "USDT"
	DefaultTopN         = 30
	DefaultLimit        = 50
	DefaultWorkerCount  = 4
	DefaultScanInterval = time.Hour
	DefaultScanTimeout  = 5 * time.Minute
)

// DefaultTimeframes are scanned when none are configured
var DefaultTimeframes = []string{"4h", "1d"}

// Config holds scanner configuration
type Config struct {
	Quote        string   // quote asset used to pick top-volume symbols
	TopN         int      // how many top-volume symbols to scan
	Symbols      []string // explicit symbols, bypasses top-volume lookup
	Timeframes   []string
	Limit        int // candles fetched per unit; shorter series are skipped
	WorkerCount  int
	ScanInterval time.Duration
	ScanTimeout  time.Duration
	Patterns     patterns.Config
}

// DefaultConfig returns the scanner defaults
func DefaultConfig() Config {
	return Config{
		Quote:        DefaultQuote,
		TopN:         DefaultTopN,
		Timeframes:   append([]string(nil), DefaultTimeframes...),
		Limit:        DefaultLimit,
		WorkerCount:  DefaultWorkerCount,
		ScanInterval: DefaultScanInterval,
		ScanTimeout:  DefaultScanTimeout,
		Patterns:     patterns.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Quote == "" {
		c.Quote = def.Quote
	}
	if c.TopN <= 0 {
		c.TopN = def.TopN
	}
	if len(c.Timeframes) == 0 {
		c.Timeframes = def.Timeframes
	}
	if c.Limit <= 0 {
		c.Limit = def.Limit
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = def.ScanInterval
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = def.ScanTimeout
	}
	return c
}

// UnitResult is the outcome of scanning one symbol on one timeframe
type UnitResult struct {
	Symbol    string                     `json:"symbol"`
	Timeframe string                     `json:"timeframe"`
	Candles   int                        `json:"candles"`
	LastPrice float64                    `json:"last_price,omitempty"`
	Signals   []patterns.EvaluatedSignal `json:"signals"`
	Skipped   bool                       `json:"skipped,omitempty"` // fewer candles than requested
	Error     string                     `json:"error,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether the unit could not be fetched
func (u UnitResult) Failed() bool {
	return u.Err != nil || u.Error != ""
}

// ScanResult aggregates all unit results from a scan, in symbol then timeframe order
type ScanResult struct {
	ScanID     string        `json:"scan_id"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	Symbols    []string      `json:"symbols"`
	Timeframes []string      `json:"timeframes"`
	Units      []UnitResult  `json:"units"`
}

// SignalCount returns the number of reported signals across all units
func (r *ScanResult) SignalCount() int {
	n := 0
	for _, u := range r.Units {
		n += len(u.Signals)
	}
	return n
}

// FailureCount returns the number of units whose fetch failed
func (r *ScanResult) FailureCount() int {
	n := 0
	for _, u := range r.Units {
		if u.Failed() {
			n++
		}
	}
	return n
}

// cachedSeries stores a fetched series with TTL
type cachedSeries struct {
	series    patterns.Series
	expiresAt time.Time
}
