package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"binance-pattern-scanner/internal/report"
	"binance-pattern-scanner/internal/scanner"

	"github.com/spf13/cobra"
)

type scanOptions struct {
	symbols          []string
	timeframes       []string
	top              int
	output           string
	lookback         int
	threshold        float64
	requireProximity bool
	showFailures     bool
}

func newScanCmd(rc *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan and print the signals",
		Long: `Fetch candles for every symbol/timeframe pair, detect engulfing and pin-bar
patterns within the lookback window and print one line per signal.

Examples:
  pattern-scanner scan
  pattern-scanner scan --top 10 --timeframes 1h,4h
  pattern-scanner scan --symbols BTCUSDT --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, rc, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.symbols, "symbols", nil, "explicit symbols, skips the top-volume lookup")
	f.StringSliceVar(&opts.timeframes, "timeframes", nil, "timeframes to scan (default from config: 4h,1d)")
	f.IntVar(&opts.top, "top", 0, "number of top-volume pairs to scan")
	f.StringVarP(&opts.output, "output", "o", "console", "output format: console or json")
	f.IntVar(&opts.lookback, "lookback", 0, "only report signals within the last N candles")
	f.Float64Var(&opts.threshold, "threshold", 0, "relative distance from entry counted as near")
	f.BoolVar(&opts.requireProximity, "require-proximity", false, "drop signals that are not near their entry price")
	f.BoolVar(&opts.showFailures, "show-failures", true, "print a line for pairs that could not be fetched")

	return cmd
}

func runScan(cmd *cobra.Command, rc *rootOptions, opts *scanOptions) error {
	cfg, err := rc.load()
	if err != nil {
		return err
	}

	if len(opts.symbols) > 0 {
		cfg.ScannerConfig.Symbols = opts.symbols
	}
	if len(opts.timeframes) > 0 {
		cfg.ScannerConfig.Timeframes = opts.timeframes
	}
	if opts.top > 0 {
		cfg.ScannerConfig.TopN = opts.top
	}
	if opts.lookback > 0 {
		cfg.PatternsConfig.Lookback = opts.lookback
	}
	if opts.threshold > 0 {
		cfg.PatternsConfig.ProximityThreshold = opts.threshold
	}
	if cmd.Flags().Changed("require-proximity") {
		cfg.PatternsConfig.RequireProximity = opts.requireProximity
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	renderer, err := report.New(opts.output)
	if err != nil {
		return err
	}
	cr, console := renderer.(*report.ConsoleRenderer)
	if console {
		cr.ShowFailures = opts.showFailures
	}

	logger := newLogger(cfg, "scan")
	a := newApp(cfg, logger)
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	timeout := cfg.ScannerConfig.ScanTimeout
	if timeout <= 0 {
		timeout = scanner.DefaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	if len(cfg.ScannerConfig.Symbols) == 0 && console {
		fmt.Fprintf(out, "📊 Fetching top %d %s pairs by volume...\n",
			cfg.ScannerConfig.TopN, strings.ToUpper(cfg.ScannerConfig.Quote))
	}

	symbols, err := a.scanner.ResolveSymbols(ctx)
	if err != nil {
		return err
	}
	if console {
		if err := report.WriteHeader(out, len(symbols)); err != nil {
			return err
		}
	}

	result, err := a.scanner.ScanSymbols(ctx, symbols)
	if err != nil {
		return err
	}

	return renderer.Render(out, result)
}
