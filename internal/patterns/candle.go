package patterns

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidCandle is returned when a candle violates low <= min(open, close) <= max(open, close) <= high
	ErrInvalidCandle = errors.New("invalid candle")
	// ErrUnorderedSeries is returned when candle timestamps are not strictly ascending
	ErrUnorderedSeries = errors.New("candles not in ascending timestamp order")
)

// Candle represents one OHLCV bar. Timestamp is the bar open time in epoch milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// NewCandle builds a validated candle
func NewCandle(timestamp int64, open, high, low, close, volume float64) (Candle, error) {
	c := Candle{
		Timestamp: timestamp,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
	if err := c.Validate(); err != nil {
		return Candle{}, err
	}
	return c, nil
}

// Validate checks the OHLC ordering invariant
func (c Candle) Validate() error {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at %d", ErrInvalidCandle, c.Timestamp)
		}
	}
	if c.Low > math.Min(c.Open, c.Close) || math.Max(c.Open, c.Close) > c.High {
		return fmt.Errorf("%w: open=%g high=%g low=%g close=%g at %d",
			ErrInvalidCandle, c.Open, c.High, c.Low, c.Close, c.Timestamp)
	}
	return nil
}

// IsBullish reports close > open. A doji is neither bullish nor bearish.
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// IsBearish reports close < open
func (c Candle) IsBearish() bool { return c.Close < c.Open }

// Body is the absolute open/close distance
func (c Candle) Body() float64 { return math.Abs(c.Close - c.Open) }

// Range is the high/low distance
func (c Candle) Range() float64 { return c.High - c.Low }

// UpperShadow is the wick above the body
func (c Candle) UpperShadow() float64 { return c.High - math.Max(c.Open, c.Close) }

// LowerShadow is the wick below the body
func (c Candle) LowerShadow() float64 { return math.Min(c.Open, c.Close) - c.Low }

// Midpoint is the center of the body
func (c Candle) Midpoint() float64 { return (c.Open + c.Close) / 2 }

// RangeMidpoint is the center of the full high/low range
func (c Candle) RangeMidpoint() float64 { return (c.High + c.Low) / 2 }

// Series is an ordered, read-only sequence of candles, oldest first.
// The zero value is an empty series.
type Series struct {
	candles []Candle
}

// NewSeries validates and copies candles into a Series. Timestamps must be
// strictly ascending, so duplicates are rejected too.
func NewSeries(candles []Candle) (Series, error) {
	out := make([]Candle, len(candles))
	copy(out, candles)

	for i, c := range out {
		if err := c.Validate(); err != nil {
			return Series{}, fmt.Errorf("candle %d: %w", i, err)
		}
		if i > 0 && c.Timestamp <= out[i-1].Timestamp {
			return Series{}, fmt.Errorf("%w: index %d (%d after %d)",
				ErrUnorderedSeries, i, c.Timestamp, out[i-1].Timestamp)
		}
	}

	return Series{candles: out}, nil
}

// Len returns the number of candles
func (s Series) Len() int { return len(s.candles) }

// At returns the candle at index i. It panics if i is out of range, like a slice index.
func (s Series) At(i int) Candle { return s.candles[i] }

// Last returns the most recent candle
func (s Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Candles returns a copy of the underlying candles
func (s Series) Candles() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}
