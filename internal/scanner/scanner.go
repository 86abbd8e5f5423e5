package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"binance-pattern-scanner/internal/events"
	"binance-pattern-scanner/internal/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrNoSymbols is returned when there is nothing to scan
var ErrNoSymbols = errors.New("scanner: no symbols to scan")

// Scanner fans pattern detection out over symbol x timeframe units
type Scanner struct {
	provider  MarketDataProvider
	evaluator *UnitEvaluator
	bus       *events.EventBus
	config    Config
	logger    zerolog.Logger

	scanMu     sync.Mutex // one scan at a time
	mu         sync.RWMutex
	lastResult *ScanResult

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScanner creates a new scanner instance. bus may be nil.
func NewScanner(provider MarketDataProvider, config Config, bus *events.EventBus, logger zerolog.Logger) *Scanner {
	config = config.withDefaults()
	return &Scanner{
		provider:  provider,
		evaluator: NewUnitEvaluator(config.Patterns, config.Limit),
		bus:       bus,
		config:    config,
		logger:    logger.With().Str("component", "scanner").Logger(),
		stopChan:  make(chan struct{}),
	}
}

// Config returns the effective configuration
func (sc *Scanner) Config() Config {
	return sc.config
}

// Start begins the background scan loop
func (sc *Scanner) Start() {
	sc.wg.Add(1)
	go sc.runScanLoop()
	sc.logger.Info().Dur("interval", sc.config.ScanInterval).Msg("Pattern scanner started")
	sc.publish(events.Event{Type: events.EventScannerStarted})
}

// runScanLoop executes scans at configured intervals
func (sc *Scanner) runScanLoop() {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.config.ScanInterval)
	defer ticker.Stop()

	sc.scanOnce()

	for {
		select {
		case <-ticker.C:
			sc.scanOnce()
		case <-sc.stopChan:
			sc.logger.Info().Msg("Pattern scanner stopped")
			sc.publish(events.Event{Type: events.EventScannerStopped})
			return
		}
	}
}

func (sc *Scanner) scanOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sc.config.ScanTimeout)
	defer cancel()

	// cancel the running scan on Stop
	go func() {
		select {
		case <-sc.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := sc.Scan(ctx); err != nil {
		sc.logger.Error().Err(err).Msg("Scan failed")
		if sc.bus != nil {
			sc.bus.PublishError("scanner", "scan failed", err)
		}
	}
}

// Scan resolves the symbol universe and runs one scan cycle over it
func (sc *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	symbols, err := sc.ResolveSymbols(ctx)
	if err != nil {
		return nil, err
	}
	return sc.ScanSymbols(ctx, symbols)
}

// ScanSymbols executes a single scan cycle over symbols and stores it as the last result
func (sc *Scanner) ScanSymbols(ctx context.Context, symbols []string) (*ScanResult, error) {
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	sc.scanMu.Lock()
	defer sc.scanMu.Unlock()

	startTime := time.Now()
	scanID := uuid.New().String()
	logCtx := sc.logger.With().Str("scan_id", scanID)
	if traceID := logging.TraceID(ctx); traceID != "" {
		logCtx = logCtx.Str("trace_id", traceID)
	}
	log := logCtx.Logger()
	ctx = logging.NewContext(ctx, log)

	timeframes := sc.config.Timeframes
	units := len(symbols) * len(timeframes)
	log.Info().Int("symbols", len(symbols)).Strs("timeframes", timeframes).Msg("Starting scan")
	if sc.bus != nil {
		sc.bus.PublishScanStarted(scanID, units)
	}

	results := make([]UnitResult, units)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sc.config.WorkerCount)

	for i, symbol := range symbols {
		for j, timeframe := range timeframes {
			idx := i*len(timeframes) + j
			symbol, timeframe := symbol, timeframe
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[idx] = sc.scanUnit(gctx, scanID, symbol, timeframe)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", scanID, err)
	}

	scanResult := &ScanResult{
		ScanID:     scanID,
		StartTime:  startTime,
		EndTime:    time.Now(),
		Duration:   time.Since(startTime),
		Symbols:    symbols,
		Timeframes: timeframes,
		Units:      results,
	}

	sc.mu.Lock()
	sc.lastResult = scanResult
	sc.mu.Unlock()

	signals, failures := scanResult.SignalCount(), scanResult.FailureCount()
	log.Info().
		Dur("duration", scanResult.Duration).
		Int("units", units).
		Int("signals", signals).
		Int("failures", failures).
		Msg("Scan completed")
	if sc.bus != nil {
		sc.bus.PublishScanCompleted(scanID, units, signals, failures, scanResult.Duration)
	}

	return scanResult, nil
}

// scanUnit fetches and evaluates one symbol/timeframe. Fetch failures stay on the unit.
func (sc *Scanner) scanUnit(ctx context.Context, scanID, symbol, timeframe string) UnitResult {
	log := logging.PatternContext(ctx, symbol, timeframe)

	series, err := sc.provider.Fetch(ctx, symbol, timeframe, sc.config.Limit)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch candles")
		if sc.bus != nil {
			sc.bus.PublishFetchFailed(scanID, symbol, timeframe, err)
		}
		return sc.evaluator.Failed(symbol, timeframe, err)
	}

	result := sc.evaluator.Evaluate(symbol, timeframe, series)
	if result.Skipped {
		log.Debug().Int("candles", result.Candles).Int("limit", sc.config.Limit).Msg("Not enough candles, skipping")
		return result
	}

	for _, sig := range result.Signals {
		log.Info().
			Str("kind", string(sig.Kind)).
			Int("candles_ago", sig.CandlesAgo).
			Float64("entry_price", sig.EntryPrice).
			Float64("last_price", sig.LastPrice).
			Bool("within_threshold", sig.WithinThreshold).
			Msg("Signal detected")
		if sc.bus != nil {
			sc.bus.PublishSignal(scanID, symbol, timeframe, string(sig.Kind), sig.CandlesAgo,
				sig.EntryPrice, sig.LastPrice, sig.WithinThreshold)
		}
	}
	return result
}

// ResolveSymbols returns the explicit symbol list or the top-volume pairs
func (sc *Scanner) ResolveSymbols(ctx context.Context) ([]string, error) {
	if len(sc.config.Symbols) > 0 {
		symbols := make([]string, 0, len(sc.config.Symbols))
		seen := make(map[string]bool, len(sc.config.Symbols))
		for _, s := range sc.config.Symbols {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			symbols = append(symbols, s)
		}
		if len(symbols) == 0 {
			return nil, ErrNoSymbols
		}
		return symbols, nil
	}

	symbols, err := sc.provider.TopSymbols(ctx, sc.config.Quote, sc.config.TopN)
	if err != nil {
		return nil, fmt.Errorf("failed to load top %s symbols: %w", sc.config.Quote, err)
	}
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	return symbols, nil
}

// LastResult returns the most recent scan result, or nil before the first scan
func (sc *Scanner) LastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}

// Stop gracefully shuts down the scanner. Safe to call more than once.
func (sc *Scanner) Stop() {
	sc.stopOnce.Do(func() {
		close(sc.stopChan)
	})
	sc.wg.Wait()
}

func (sc *Scanner) publish(e events.Event) {
	if sc.bus != nil {
		sc.bus.Publish(e)
	}
}
