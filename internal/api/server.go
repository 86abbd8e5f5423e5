package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"binance-pattern-scanner/config"
	"binance-pattern-scanner/internal/auth"
	"binance-pattern-scanner/internal/binance"
	"binance-pattern-scanner/internal/cache"
	"binance-pattern-scanner/internal/events"
	"binance-pattern-scanner/internal/logging"
	"binance-pattern-scanner/internal/scanner"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ScanService is what the API needs from the scanner
type ScanService interface {
	Scan(ctx context.Context) (*scanner.ScanResult, error)
	LastResult() *scanner.ScanResult
	Config() scanner.Config
}

// SecretStore is the health view of the secret backend
type SecretStore interface {
	Health(ctx context.Context) error
}

// Deps bundles the collaborators of the server. Only Scanner is required.
type Deps struct {
	Scanner     ScanService
	Provider    scanner.MarketDataProvider // serves /api/symbols/top
	EventBus    *events.EventBus           // streamed over /ws
	JWT         *auth.JWTManager           // nil disables authentication
	Cache       *cache.CacheService        // reported by /api/status
	RateLimiter *binance.RateLimiter       // reported by /api/status
	Vault       SecretStore                // nil when vault is disabled
	Logger      zerolog.Logger
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	deps        Deps
	config      config.ServerConfig
	hub         *WSHub
	scanLimiter *rate.Limiter
	clients     *clientLimiter
	logger      zerolog.Logger
	startedAt   time.Time
	wg          sync.WaitGroup // background scans
}

const (
	clientRequestsPerMinute = 120
	clientBurst             = 20
	healthCheckTimeout      = 2 * time.Second
	traceHeader             = "X-Trace-ID"
)

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := deps.Logger.With().Str("component", "api").Logger()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	scanEvery := rate.Inf
	if cfg.ScanTriggerRate > 0 {
		scanEvery = rate.Every(cfg.ScanTriggerRate)
	}

	server := &Server{
		router:      router,
		deps:        deps,
		config:      cfg,
		hub:         NewWSHub(logger),
		scanLimiter: rate.NewLimiter(scanEvery, 1),
		clients:     newClientLimiter(rate.Every(time.Minute/clientRequestsPerMinute), clientBurst),
		logger:      logger,
		startedAt:   time.Now(),
	}

	go server.hub.Run()
	if deps.EventBus != nil {
		deps.EventBus.SubscribeAll(server.hub.BroadcastEvent)
	}

	server.setupRoutes()
	return server
}

func corsConfig(allowed string) cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length", traceHeader}

	var origins []string
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
		return corsConfig
	}
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	return corsConfig
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.wsAuth(), s.handleWebSocket)

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	if s.deps.JWT != nil {
		api.Use(auth.Middleware(s.deps.JWT))
	}

	api.GET("/status", s.handleStatus)
	api.GET("/scan/latest", s.handleLatestScan)
	api.GET("/symbols/top", s.handleTopSymbols)
	api.POST("/patterns/evaluate", s.handleEvaluate)

	if s.deps.JWT != nil {
		api.POST("/scan", auth.RequireScope(auth.ScopeScan), s.handleTriggerScan)
	} else {
		api.POST("/scan", s.handleTriggerScan)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *WSHub {
	return s.hub
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Bool("auth", s.deps.JWT != nil).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Background scan still running at shutdown")
	}

	s.hub.Stop()
	return err
}

// requestLogger tags each request with a trace id and logs one line per request
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, log := logging.WithTraceContext(logging.NewContext(c.Request.Context(), logger))
		c.Request = c.Request.WithContext(ctx)
		c.Header(traceHeader, logging.TraceID(ctx))
		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		} else if status >= http.StatusBadRequest {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// rateLimitMiddleware limits requests per client IP
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.clients.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
