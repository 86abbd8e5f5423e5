package patterns

const (
	// MaxPinbarBodyRatio is the largest body/range ratio still treated as a pin-bar
	MaxPinbarBodyRatio = 0.3
	// PinbarShadowMultiple is how many bodies the rejection wick must exceed
	PinbarShadowMultiple = 2.0
)

// isBullishEngulfing checks for Bullish Engulfing pattern
func isBullishEngulfing(c1, c2 Candle) bool {
	// C1: Bearish (red) candle, C2: Bullish (green) candle
	if !c1.IsBearish() || !c2.IsBullish() {
		return false
	}

	// C2 opens below C1 close and closes above C1 open
	return c2.Open < c1.Close && c2.Close > c1.Open
}

// isBearishEngulfing checks for Bearish Engulfing pattern
func isBearishEngulfing(c1, c2 Candle) bool {
	// C1: Bullish (green) candle, C2: Bearish (red) candle
	if !c1.IsBullish() || !c2.IsBearish() {
		return false
	}

	// C2 opens above C1 close and closes below C1 open
	return c2.Open > c1.Close && c2.Close < c1.Open
}

// pinbarKind classifies candle as a pin-bar confirmed by next
func pinbarKind(candle, next Candle) (Kind, bool) {
	fullRange := candle.Range()
	if fullRange == 0 {
		return "", false
	}

	body := candle.Body()
	if body/fullRange > MaxPinbarBodyRatio {
		return "", false
	}

	upper := candle.UpperShadow()
	lower := candle.LowerShadow()

	switch {
	case lower > PinbarShadowMultiple*body && lower > upper && next.IsBullish():
		return BullishPinbar, true
	case upper > PinbarShadowMultiple*body && upper > lower && next.IsBearish():
		return BearishPinbar, true
	}

	return "", false
}

// DetectEngulfing scans every adjacent pair for engulfing patterns.
// The engulfing (second) candle is the trigger and the reference.
func DetectEngulfing(series Series) []Signal {
	var signals []Signal

	if series.Len() < 2 {
		return signals
	}

	for i := 1; i < series.Len(); i++ {
		c1, c2 := series.At(i-1), series.At(i)

		switch {
		case isBullishEngulfing(c1, c2):
			signals = append(signals, Signal{TriggerIndex: i, Kind: BullishEngulfing, Reference: c2})
		case isBearishEngulfing(c1, c2):
			signals = append(signals, Signal{TriggerIndex: i, Kind: BearishEngulfing, Reference: c2})
		}
	}

	return signals
}

// DetectPinbars scans indices 1..len-2 for pin-bars confirmed by the following candle.
// The last candle can never trigger since it has no confirmation yet.
func DetectPinbars(series Series) []Signal {
	var signals []Signal

	if series.Len() < 3 {
		return signals
	}

	for i := 1; i < series.Len()-1; i++ {
		candle := series.At(i)
		if kind, ok := pinbarKind(candle, series.At(i+1)); ok {
			signals = append(signals, Signal{TriggerIndex: i, Kind: kind, Reference: candle})
		}
	}

	return signals
}
