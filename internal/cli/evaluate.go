package cli

import (
	"encoding/json"
	"fmt"

	"binance-pattern-scanner/internal/patterns"
	"binance-pattern-scanner/internal/report"

	"github.com/spf13/cobra"
)

type evaluateOptions struct {
	format           string
	symbol           string
	timeframe        string
	lookback         int
	threshold        float64
	requireProximity bool
	lastPrice        float64
	output           string
}

func newEvaluateCmd(rc *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate <candles-file>",
		Short: "Detect patterns in a saved candle file",
		Long: `Run the pattern pipeline over candles read from a file, without touching the
network. JSON files may hold candle objects or a raw /api/v3/klines response;
CSV files hold timestamp,open,high,low,close[,volume] rows.

Examples:
  pattern-scanner evaluate btc_4h.json --symbol BTCUSDT --timeframe 4h
  pattern-scanner evaluate candles.csv --lookback 5 --require-proximity`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.load()
			if err != nil {
				return err
			}

			pcfg := cfg.PatternsConfig
			if opts.lookback > 0 {
				pcfg.Lookback = opts.lookback
			}
			if opts.threshold > 0 {
				pcfg.ProximityThreshold = opts.threshold
			}
			if cmd.Flags().Changed("require-proximity") {
				pcfg.RequireProximity = opts.requireProximity
			}
			if err := pcfg.Validate(); err != nil {
				return err
			}

			series, err := readSeries(args[0], opts.format)
			if err != nil {
				return err
			}

			detector := patterns.NewDetector(pcfg)
			var signals []patterns.EvaluatedSignal
			if opts.lastPrice > 0 {
				signals = detector.Evaluate(series, opts.lastPrice)
			} else {
				signals = detector.EvaluateLatest(series)
			}

			out := cmd.OutOrStdout()
			if opts.output == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(signals)
			}

			if len(signals) == 0 {
				fmt.Fprintf(out, "No signals in the last %d of %d candles\n", pcfg.Lookback, series.Len())
				return nil
			}
			return report.WriteUnit(out, opts.symbol, opts.timeframe, signals)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "auto", "input format: auto, json or csv")
	f.StringVar(&opts.symbol, "symbol", "FILE", "symbol label for the output")
	f.StringVar(&opts.timeframe, "timeframe", "-", "timeframe label for the output")
	f.IntVar(&opts.lookback, "lookback", 0, "only report signals within the last N candles")
	f.Float64Var(&opts.threshold, "threshold", 0, "relative distance from entry counted as near")
	f.BoolVar(&opts.requireProximity, "require-proximity", false, "drop signals that are not near their entry price")
	f.Float64Var(&opts.lastPrice, "last-price", 0, "price to compare against (default: last close)")
	f.StringVarP(&opts.output, "output", "o", "console", "output format: console or json")

	return cmd
}
