package scanner

import (
	"binance-pattern-scanner/internal/patterns"
)

// UnitEvaluator turns one fetched series into a UnitResult
type UnitEvaluator struct {
	detector *patterns.Detector
	limit    int
}

// NewUnitEvaluator creates an evaluator that skips series shorter than limit
func NewUnitEvaluator(cfg patterns.Config, limit int) *UnitEvaluator {
	return &UnitEvaluator{
		detector: patterns.NewDetector(cfg),
		limit:    limit,
	}
}

// Evaluate runs detection on a fetched series
func (ue *UnitEvaluator) Evaluate(symbol, timeframe string, series patterns.Series) UnitResult {
	result := UnitResult{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   series.Len(),
		Signals:   []patterns.EvaluatedSignal{},
	}

	if last, ok := series.Last(); ok {
		result.LastPrice = last.Close
	}
	if series.Len() < ue.limit {
		result.Skipped = true
		return result
	}

	result.Signals = ue.detector.EvaluateLatest(series)
	return result
}

// Failed builds the result for a unit whose fetch failed
func (ue *UnitEvaluator) Failed(symbol, timeframe string, err error) UnitResult {
	return UnitResult{
		Symbol:    symbol,
		Timeframe: timeframe,
		Signals:   []patterns.EvaluatedSignal{},
		Error:     err.Error(),
		Err:       err,
	}
}
