package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"binance-pattern-scanner/internal/binance"
	"binance-pattern-scanner/internal/patterns"
)

// readSeries loads candles from a file. format is "json", "csv" or "auto"
// (by extension). JSON accepts either candle objects or a raw Binance klines dump.
func readSeries(path, format string) (patterns.Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return patterns.Series{}, err
	}

	if format == "" || format == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = "csv"
		default:
			format = "json"
		}
	}

	var candles []patterns.Candle
	switch format {
	case "json":
		candles, err = decodeCandlesJSON(data)
	case "csv":
		candles, err = decodeCandlesCSV(bytes.NewReader(data))
	default:
		return patterns.Series{}, fmt.Errorf("unknown candle format %q", format)
	}
	if err != nil {
		return patterns.Series{}, fmt.Errorf("%s: %w", path, err)
	}

	return patterns.NewSeries(candles)
}

func decodeCandlesJSON(data []byte) ([]patterns.Candle, error) {
	trimmed := bytes.TrimSpace(data)
	// a klines dump is an array of arrays
	if bytes.HasPrefix(trimmed, []byte("[")) && bytes.HasPrefix(bytes.TrimSpace(trimmed[1:]), []byte("[")) {
		klines, err := binance.ParseKlines(trimmed)
		if err != nil {
			return nil, err
		}
		series, err := binance.KlinesToSeries(klines)
		if err != nil {
			return nil, err
		}
		return series.Candles(), nil
	}

	var candles []patterns.Candle
	if err := json.Unmarshal(trimmed, &candles); err != nil {
		return nil, fmt.Errorf("error parsing candles: %w", err)
	}
	return candles, nil
}

// decodeCandlesCSV reads timestamp,open,high,low,close[,volume] rows. A header
// row is skipped when its first field is not a number.
func decodeCandlesCSV(r io.Reader) ([]patterns.Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error parsing csv: %w", err)
	}

	candles := make([]patterns.Candle, 0, len(records))
	for i, rec := range records {
		if len(rec) == 0 || (len(rec) == 1 && rec[0] == "") {
			continue
		}
		if i == 0 {
			if _, err := strconv.ParseFloat(rec[0], 64); err != nil {
				continue
			}
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 fields, got %d", i+1, len(rec))
		}

		var vals [6]float64
		for j := 0; j < len(rec) && j < 6; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", i+1, j+1, err)
			}
			vals[j] = v
		}

		candles = append(candles, patterns.Candle{
			Timestamp: int64(vals[0]),
			Open:      vals[1],
			High:      vals[2],
			Low:       vals[3],
			Close:     vals[4],
			Volume:    vals[5],
		})
	}
	return candles, nil
}
