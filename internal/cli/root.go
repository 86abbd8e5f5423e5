// Package cli wires the scanner components behind a cobra command tree.
package cli

import (
	"fmt"
	"strings"

	"binance-pattern-scanner/config"
	"binance-pattern-scanner/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	configPath string
	logLevel   string
	mock       bool
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pattern-scanner",
		Short: "Scan Binance pairs for engulfing and pin-bar reversals",
		Long: `pattern-scanner pulls recent candles for the top-volume Binance pairs and
reports bullish/bearish engulfing and confirmed pin-bar patterns near their
entry price.

Examples:
  pattern-scanner scan
  pattern-scanner scan --symbols BTCUSDT,ETHUSDT --timeframes 1h,4h --output json
  pattern-scanner evaluate candles.csv --symbol BTCUSDT --timeframe 4h
  pattern-scanner serve --config config.yaml`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: config.yaml, config.yml or config.json if present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (DEBUG, INFO, WARN, ERROR)")
	cmd.PersistentFlags().BoolVar(&opts.mock, "mock", false, "use simulated market data instead of the Binance API")

	cmd.AddCommand(
		newScanCmd(opts),
		newServeCmd(opts),
		newEvaluateCmd(opts),
		newConfigCmd(opts),
		newTokenCmd(opts),
		newSecretsCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads the configuration and applies flag overrides
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LoggingConfig.Level = strings.ToUpper(o.logLevel)
	}
	if o.mock {
		cfg.BinanceConfig.MockMode = true
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the default
func newLogger(cfg *config.Config, service string) zerolog.Logger {
	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Service:    service,
	})
	logging.SetDefault(logger)
	return logger
}
