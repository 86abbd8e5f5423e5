package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"binance-pattern-scanner/internal/logging"
	"binance-pattern-scanner/internal/patterns"
	"binance-pattern-scanner/internal/scanner"

	"github.com/gin-gonic/gin"
)

const maxTopSymbols = 200

// EvaluateRequest is the body of POST /api/patterns/evaluate
type EvaluateRequest struct {
	Candles   []patterns.Candle `json:"candles" binding:"required"`
	Config    json.RawMessage   `json:"config,omitempty"`     // partial patterns config, merged over defaults
	LastPrice float64           `json:"last_price,omitempty"` // defaults to the last close
}

// EvaluateResponse is returned by POST /api/patterns/evaluate
type EvaluateResponse struct {
	Candles int                        `json:"candles"`
	Config  patterns.Config            `json:"config"`
	Signals []patterns.EvaluatedSignal `json:"signals"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(ctx); err != nil {
			resp["cache"] = "degraded"
			resp["status"] = "degraded"
		} else {
			resp["cache"] = "healthy"
		}
	}
	if s.deps.Vault != nil {
		if err := s.deps.Vault.Health(ctx); err != nil {
			resp["vault"] = "unavailable"
			resp["status"] = "degraded"
		} else {
			resp["vault"] = "healthy"
		}
	}

	if last := s.deps.Scanner.LastResult(); last != nil {
		resp["last_scan"] = last.EndTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	cfg := s.deps.Scanner.Config()
	status := gin.H{
		"scanner": gin.H{
			"quote":         cfg.Quote,
			"top_n":         cfg.TopN,
			"symbols":       cfg.Symbols,
			"timeframes":    cfg.Timeframes,
			"limit":         cfg.Limit,
			"workers":       cfg.WorkerCount,
			"scan_interval": cfg.ScanInterval.String(),
			"patterns":      cfg.Patterns,
		},
		"ws_clients": s.hub.GetClientCount(),
	}

	if last := s.deps.Scanner.LastResult(); last != nil {
		status["last_scan"] = gin.H{
			"scan_id":  last.ScanID,
			"end_time": last.EndTime,
			"signals":  last.SignalCount(),
			"failures": last.FailureCount(),
		}
	}
	if s.deps.RateLimiter != nil {
		status["binance"] = s.deps.RateLimiter.GetStatus()
	}
	if s.deps.Cache != nil {
		status["cache"] = s.deps.Cache.GetStats()
	}
	if s.deps.Vault != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		vaultStatus := gin.H{"healthy": true}
		if err := s.deps.Vault.Health(ctx); err != nil {
			vaultStatus = gin.H{"healthy": false, "error": err.Error()}
		}
		status["vault"] = vaultStatus
	}

	successResponse(c, status)
}

func (s *Server) handleLatestScan(c *gin.Context) {
	last := s.deps.Scanner.LastResult()
	if last == nil {
		errorResponse(c, http.StatusNotFound, "no scan has completed yet")
		return
	}
	successResponse(c, last)
}

// handleTriggerScan runs a scan now. With ?async=true it returns 202 and the
// result arrives over /ws and /api/scan/latest.
func (s *Server) handleTriggerScan(c *gin.Context) {
	if !s.scanLimiter.Allow() {
		c.Header("Retry-After", strconv.Itoa(int(s.config.ScanTriggerRate.Seconds())))
		errorResponse(c, http.StatusTooManyRequests, fmt.Sprintf("scans can be triggered at most once every %s", s.config.ScanTriggerRate))
		return
	}

	timeout := s.deps.Scanner.Config().ScanTimeout
	if timeout <= 0 {
		timeout = scanner.DefaultScanTimeout
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		// keep the request's trace id and logger, not its cancellation
		traceCtx := c.Request.Context()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.WithoutCancel(traceCtx), timeout)
			defer cancel()
			if _, err := s.deps.Scanner.Scan(ctx); err != nil {
				log := logging.FromContext(ctx)
				log.Error().Err(err).Msg("Triggered scan failed")
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"success": true, "status": "started"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	result, err := s.deps.Scanner.Scan(ctx)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, scanner.ErrNoSymbols) {
			status = http.StatusUnprocessableEntity
		} else if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		errorResponse(c, status, err.Error())
		return
	}

	successResponse(c, result)
}

func (s *Server) handleTopSymbols(c *gin.Context) {
	if s.deps.Provider == nil {
		errorResponse(c, http.StatusServiceUnavailable, "market data provider not configured")
		return
	}

	cfg := s.deps.Scanner.Config()
	quote := strings.ToUpper(c.DefaultQuery("quote", cfg.Quote))

	n := cfg.TopN
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxTopSymbols {
			errorResponse(c, http.StatusBadRequest, fmt.Sprintf("n must be between 1 and %d", maxTopSymbols))
			return
		}
		n = v
	}

	symbols, err := s.deps.Provider.TopSymbols(c.Request.Context(), quote, n)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	successResponse(c, gin.H{
		"quote":   quote,
		"symbols": symbols,
	})
}

// handleEvaluate runs the pattern pipeline over caller-supplied candles
func (s *Server) handleEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	cfg := s.deps.Scanner.Config().Patterns
	if cfg.Validate() != nil {
		cfg = patterns.DefaultConfig()
	}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid config: "+err.Error())
			return
		}
	}
	if err := cfg.Validate(); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	series, err := patterns.NewSeries(req.Candles)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	detector := patterns.NewDetector(cfg)
	var signals []patterns.EvaluatedSignal
	if req.LastPrice > 0 {
		signals = detector.Evaluate(series, req.LastPrice)
	} else {
		signals = detector.EvaluateLatest(series)
	}
	if signals == nil {
		signals = []patterns.EvaluatedSignal{}
	}

	successResponse(c, EvaluateResponse{
		Candles: series.Len(),
		Config:  cfg,
		Signals: signals,
	})
}
