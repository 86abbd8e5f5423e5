package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"binance-pattern-scanner/internal/patterns"
	"binance-pattern-scanner/internal/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signal(kind patterns.Kind, ago int, entry, last float64) patterns.EvaluatedSignal {
	return patterns.EvaluatedSignal{
		Signal:     patterns.Signal{TriggerIndex: 49 - ago, Kind: kind},
		EntryPrice: entry,
		CandlesAgo: ago,
		LastPrice:  last,
	}
}

func sampleResult() *scanner.ScanResult {
	return &scanner.ScanResult{
		ScanID:     "scan-1",
		Symbols:    []string{"BTCUSDT", "ETHUSDT"},
		Timeframes: []string{"4h", "1d"},
		Units: []scanner.UnitResult{
			{Symbol: "BTCUSDT", Timeframe: "4h", Candles: 50, Signals: []patterns.EvaluatedSignal{
				signal(patterns.BullishEngulfing, 3, 64000.126, 64250),
				signal(patterns.BearishPinbar, 1, 64500, 64250),
			}},
			{Symbol: "BTCUSDT", Timeframe: "1d", Candles: 50},
			{Symbol: "ETHUSDT", Timeframe: "4h", Error: "timeout", Err: errors.New("timeout")},
			{Symbol: "ETHUSDT", Timeframe: "1d", Candles: 50, Signals: []patterns.EvaluatedSignal{
				signal(patterns.BullishPinbar, 0, 3000, 3010.5),
			}},
		},
	}
}

func TestFormatSignal(t *testing.T) {
	line := FormatSignal("BTCUSDT", "4h", signal(patterns.BullishEngulfing, 3, 64000.126, 64250))
	assert.Equal(t, "✅ BTCUSDT | 4H | bullish_engulfing | 3 candle(s) ago | Entry ≈ 64000.13 | Price ≈ 64250.00", line)
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, 30))
	assert.Equal(t, "✅ Scanning 30 pairs...\n", buf.String())
}

func TestConsoleRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := &ConsoleRenderer{ShowFailures: true}
	require.NoError(t, r.Render(&buf, sampleResult()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "BTCUSDT | 4H | bullish_engulfing")
	assert.Contains(t, lines[1], "BTCUSDT | 4H | bearish_pinbar | 1 candle(s) ago")
	assert.Equal(t, Separator, lines[2])
	assert.Equal(t, "⚠️ Failed to load ETHUSDT - 4h: timeout", lines[3])
	assert.Contains(t, lines[4], "ETHUSDT | 1D | bullish_pinbar | 0 candle(s) ago | Entry ≈ 3000.00 | Price ≈ 3010.50")
	assert.Equal(t, Separator, lines[5])
	assert.Len(t, Separator, 60)
}

func TestConsoleRendererQuiet(t *testing.T) {
	var buf bytes.Buffer
	result := &scanner.ScanResult{Units: []scanner.UnitResult{{Symbol: "BTCUSDT", Timeframe: "4h"}}}
	require.NoError(t, (&ConsoleRenderer{}).Render(&buf, result))
	assert.Empty(t, buf.String())
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONRenderer{}).Render(&buf, sampleResult()))

	var decoded struct {
		ScanID string `json:"scan_id"`
		Units  []struct {
			Symbol  string `json:"symbol"`
			Error   string `json:"error"`
			Signals []struct {
				Kind       string  `json:"kind"`
				EntryPrice float64 `json:"entry_price"`
			} `json:"signals"`
		} `json:"units"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "scan-1", decoded.ScanID)
	require.Len(t, decoded.Units, 4)
	assert.Equal(t, "bearish_pinbar", decoded.Units[0].Signals[1].Kind)
	assert.Equal(t, "timeout", decoded.Units[2].Error)
}

func TestNew(t *testing.T) {
	r, err := New("json")
	require.NoError(t, err)
	assert.IsType(t, &JSONRenderer{}, r)

	r, err = New("")
	require.NoError(t, err)
	assert.IsType(t, &ConsoleRenderer{}, r)

	_, err = New("xml")
	assert.Error(t, err)
}
