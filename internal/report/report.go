// Package report renders scan results for terminals and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"binance-pattern-scanner/internal/patterns"
	"binance-pattern-scanner/internal/scanner"
)

// Separator is printed after every unit that reported at least one signal
var Separator = strings.Repeat("-", 60)

// Renderer writes a scan result to w
type Renderer interface {
	Render(w io.Writer, result *scanner.ScanResult) error
}

// New returns the renderer for a format name ("console" or "json")
func New(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "console", "text":
		return &ConsoleRenderer{}, nil
	case "json":
		return &JSONRenderer{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// FormatSignal formats one signal line
func FormatSignal(symbol, timeframe string, s patterns.EvaluatedSignal) string {
	return fmt.Sprintf("✅ %s | %s | %s | %d candle(s) ago | Entry ≈ %.2f | Price ≈ %.2f",
		symbol, strings.ToUpper(timeframe), s.Kind, s.CandlesAgo, s.EntryPrice, s.LastPrice)
}

// WriteHeader prints the line announcing a scan of n pairs
func WriteHeader(w io.Writer, n int) error {
	_, err := fmt.Fprintf(w, "✅ Scanning %d pairs...\n", n)
	return err
}

// ConsoleRenderer prints one line per signal
type ConsoleRenderer struct {
	ShowFailures bool // print a warning line for units that failed to fetch
}

func (r *ConsoleRenderer) Render(w io.Writer, result *scanner.ScanResult) error {
	for _, u := range result.Units {
		if u.Failed() {
			if r.ShowFailures {
				if _, err := fmt.Fprintf(w, "⚠️ Failed to load %s - %s: %s\n", u.Symbol, u.Timeframe, u.Error); err != nil {
					return err
				}
			}
			continue
		}
		if err := WriteUnit(w, u.Symbol, u.Timeframe, u.Signals); err != nil {
			return err
		}
	}
	return nil
}

// WriteUnit prints the signals of a single symbol/timeframe followed by the
// separator. Nothing is written when there are no signals.
func WriteUnit(w io.Writer, symbol, timeframe string, signals []patterns.EvaluatedSignal) error {
	if len(signals) == 0 {
		return nil
	}
	for _, s := range signals {
		if _, err := fmt.Fprintln(w, FormatSignal(symbol, timeframe, s)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, Separator)
	return err
}

// JSONRenderer encodes the whole result
type JSONRenderer struct {
	Indent bool
}

func (r *JSONRenderer) Render(w io.Writer, result *scanner.ScanResult) error {
	enc := json.NewEncoder(w)
	if r.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
