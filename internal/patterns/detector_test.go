package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatSeries returns n quiet candles followed by extra
func flatSeries(t *testing.T, n int, extra ...Candle) Series {
	t.Helper()
	candles := make([]Candle, 0, n+len(extra))
	for i := 0; i < n; i++ {
		// small bullish bodies: no engulfing and no pin-bars
		candles = append(candles, bar(i, 100, 100.6, 99.9, 100.5))
	}
	for i, c := range extra {
		c.Timestamp = int64(n+i) * 60_000
		candles = append(candles, c)
	}
	return mustSeries(t, candles...)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "bullish", BullishEngulfing.Direction())
	assert.Equal(t, "bullish", BullishPinbar.Direction())
	assert.Equal(t, "bearish", BearishEngulfing.Direction())
	assert.Equal(t, "bearish", BearishPinbar.Direction())
	assert.Equal(t, "neutral", Kind("").Direction())

	assert.True(t, BearishEngulfing.IsEngulfing())
	assert.False(t, BearishEngulfing.IsPinbar())
	assert.True(t, BullishPinbar.IsPinbar())
	assert.False(t, BullishPinbar.IsEngulfing())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.False(t, DefaultConfig().RequireProximity)
	assert.Error(t, Config{Lookback: 0, ProximityThreshold: 0.02}.Validate())
	assert.Error(t, Config{Lookback: 10, ProximityThreshold: 0}.Validate())
}

func TestNewDetectorDefaults(t *testing.T) {
	d := NewDetector(Config{})
	assert.Equal(t, DefaultConfig(), d.Config())

	d = NewDetector(Config{Lookback: 3, ProximityThreshold: 0.05, RequireProximity: true})
	assert.Equal(t, 3, d.Config().Lookback)
	assert.True(t, d.Config().RequireProximity)
}

func TestDetectOrdersEngulfingBeforePinbar(t *testing.T) {
	s := mustSeries(t,
		bar(0, 9, 10.5, 8.5, 10),
		bar(1, 10, 15, 9, 10.5),  // bearish pin-bar
		bar(2, 11, 11.5, 9, 9.5), // confirmation, also a bearish engulfing
	)

	signals := NewDetector(DefaultConfig()).Detect(s)
	require.Len(t, signals, 2)
	assert.Equal(t, BearishEngulfing, signals[0].Kind)
	assert.Equal(t, 2, signals[0].TriggerIndex)
	assert.Equal(t, BearishPinbar, signals[1].Kind)
	assert.Equal(t, 1, signals[1].TriggerIndex)
}

func TestDetectIsPure(t *testing.T) {
	s := flatSeries(t, 20,
		bar(0, 101, 101, 99, 100),
		bar(0, 99.5, 102, 99, 101.5),
		bar(0, 101, 106, 100.5, 101.2),
		bar(0, 101.5, 101.8, 100, 100.2),
	)
	d := NewDetector(DefaultConfig())

	first := d.Detect(s)
	second := d.Detect(s)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)

	assert.Equal(t, d.EvaluateLatest(s), d.EvaluateLatest(s))
}

func TestEvaluateReportsEverythingWhenProximityNotRequired(t *testing.T) {
	s := flatSeries(t, 48,
		bar(0, 10, 10, 7, 8),
		bar(0, 7, 11.5, 6.5, 11),
	)

	// last price far away from the 9.0 entry
	evaluated := NewDetector(DefaultConfig()).Evaluate(s, 50)
	require.Len(t, evaluated, 1)

	sig := evaluated[0]
	assert.Equal(t, BullishEngulfing, sig.Kind)
	assert.Equal(t, 49, sig.TriggerIndex)
	assert.Equal(t, 0, sig.CandlesAgo)
	assert.Equal(t, 9.0, sig.EntryPrice)
	assert.Equal(t, 50.0, sig.LastPrice)
	assert.False(t, sig.WithinThreshold)
}

func TestEvaluateRequireProximity(t *testing.T) {
	s := flatSeries(t, 48,
		bar(0, 10, 10, 7, 8),
		bar(0, 7, 11.5, 6.5, 11),
	)
	d := NewDetector(Config{Lookback: 10, ProximityThreshold: 0.02, RequireProximity: true})

	assert.Empty(t, d.Evaluate(s, 50))

	evaluated := d.Evaluate(s, 9.1)
	require.Len(t, evaluated, 1)
	assert.True(t, evaluated[0].WithinThreshold)
}

func TestEvaluateNegativeEntryIsNeverNear(t *testing.T) {
	s := flatSeries(t, 48,
		bar(0, -8, -7.5, -10.5, -10),
		bar(0, -10.5, -6.5, -11, -7),
	)

	evaluated := NewDetector(DefaultConfig()).Evaluate(s, -8.75)
	require.Len(t, evaluated, 1)
	assert.Equal(t, BullishEngulfing, evaluated[0].Kind)
	assert.Equal(t, -8.75, evaluated[0].EntryPrice)
	assert.False(t, evaluated[0].WithinThreshold)

	d := NewDetector(Config{Lookback: 10, ProximityThreshold: 0.02, RequireProximity: true})
	assert.Empty(t, d.Evaluate(s, -8.75))
}

func TestEvaluateLookbackWindow(t *testing.T) {
	// engulfing at index 1 of a 50 candle series is 48 candles ago
	candles := []Candle{bar(0, 10, 10, 7, 8), bar(1, 7, 11.5, 6.5, 11)}
	for i := 2; i < 50; i++ {
		candles = append(candles, bar(i, 11, 11.6, 10.9, 11.5))
	}
	s := mustSeries(t, candles...)

	assert.Empty(t, NewDetector(DefaultConfig()).EvaluateLatest(s))

	evaluated := NewDetector(Config{Lookback: 49}).EvaluateLatest(s)
	require.Len(t, evaluated, 1)
	assert.Equal(t, 48, evaluated[0].CandlesAgo)
	assert.Equal(t, 11.5, evaluated[0].LastPrice)
}

func TestEvaluateLatestEmptySeries(t *testing.T) {
	assert.Empty(t, NewDetector(DefaultConfig()).EvaluateLatest(Series{}))
}
