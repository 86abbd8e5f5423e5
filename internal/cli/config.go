package cli

import (
	"fmt"
	"strings"

	"binance-pattern-scanner/config"

	"github.com/spf13/cobra"
)

func newConfigCmd(rc *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage scanner configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  pattern-scanner config init -o config.yaml
  pattern-scanner config validate -f config.yaml`,
	}

	cmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateSampleConfig(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  pattern-scanner scan --config %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "config.yaml", "output config file path (.yaml or .json)")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			universe := fmt.Sprintf("top %d %s pairs", cfg.ScannerConfig.TopN, cfg.ScannerConfig.Quote)
			if len(cfg.ScannerConfig.Symbols) > 0 {
				universe = strings.Join(cfg.ScannerConfig.Symbols, ",")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Universe: %s\n", universe)
			fmt.Fprintf(out, "  Timeframes: %s (limit %d)\n", strings.Join(cfg.ScannerConfig.Timeframes, ","), cfg.ScannerConfig.Limit)
			fmt.Fprintf(out, "  Patterns: lookback %d, threshold %.2f%%, require proximity %t\n",
				cfg.PatternsConfig.Lookback, cfg.PatternsConfig.ProximityThreshold*100, cfg.PatternsConfig.RequireProximity)
			fmt.Fprintf(out, "  Mock mode: %t\n", cfg.BinanceConfig.MockMode)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
