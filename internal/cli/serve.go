package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"binance-pattern-scanner/internal/api"
	"binance-pattern-scanner/internal/auth"

	"github.com/spf13/cobra"
)

func newServeCmd(rc *rootOptions) *cobra.Command {
	var (
		port      int
		noScanner bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the periodic scanner",
		Long: `Start the REST/WebSocket API and scan on scanner.scan_interval.

Endpoints:
  GET  /health
  GET  /ws                      live scan events
  GET  /api/status
  GET  /api/scan/latest
  POST /api/scan[?async=true]
  GET  /api/symbols/top?quote=USDT&n=30
  POST /api/patterns/evaluate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.ServerConfig.Port = port
			}

			logger := newLogger(cfg, "serve")
			a := newApp(cfg, logger)
			defer a.close()

			var jwtManager *auth.JWTManager
			if cfg.AuthConfig.Enabled {
				jwtManager, err = auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration)
				if err != nil {
					return fmt.Errorf("auth: %w", err)
				}
			}

			deps := api.Deps{
				Scanner:     a.scanner,
				Provider:    a.provider,
				EventBus:    a.bus,
				JWT:         jwtManager,
				Cache:       a.cacheSvc,
				RateLimiter: a.rateLimiter,
				Logger:      logger,
			}
			if a.vault != nil {
				deps.Vault = a.vault
			}
			server := api.NewServer(cfg.ServerConfig, deps)

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- server.Start()
			}()

			if !noScanner {
				a.scanner.Start()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			select {
			case <-ctx.Done():
				logger.Info().Msg("Shutdown signal received")
			case err := <-serverErr:
				if err != nil {
					a.scanner.Stop()
					return err
				}
			}

			timeout := cfg.ServerConfig.ShutdownTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			a.scanner.Stop()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("Server shutdown error")
			}

			logger.Info().Msg("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	cmd.Flags().BoolVar(&noScanner, "no-scanner", false, "serve the API without the periodic scan loop")

	return cmd
}
