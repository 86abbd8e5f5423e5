package patterns

import "math"

// EntryPrice returns the heuristic entry for a signal: the body midpoint of an
// engulfing candle, or the range midpoint of a pin-bar
func EntryPrice(sig Signal) float64 {
	if sig.Kind.IsEngulfing() {
		return sig.Reference.Midpoint()
	}
	return sig.Reference.RangeMidpoint()
}

// RecentSignal is a signal with its distance from the end of the series
type RecentSignal struct {
	Signal
	CandlesAgo int
}

// FilterLookback keeps signals triggered within the last lookback candles.
// CandlesAgo == lookback is outside the window.
func FilterLookback(signals []Signal, seriesLen, lookback int) []RecentSignal {
	var recent []RecentSignal
	for _, sig := range signals {
		ago := seriesLen - 1 - sig.TriggerIndex
		if ago < 0 || ago >= lookback {
			continue
		}
		recent = append(recent, RecentSignal{Signal: sig, CandlesAgo: ago})
	}
	return recent
}

// IsNearEntry reports |lastPrice-entryPrice|/entryPrice < threshold.
// A zero or negative entry price is never near.
func IsNearEntry(lastPrice, entryPrice, threshold float64) bool {
	if entryPrice <= 0 {
		return false
	}
	return math.Abs(lastPrice-entryPrice)/entryPrice < threshold
}
