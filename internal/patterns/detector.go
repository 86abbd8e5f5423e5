package patterns

import "fmt"

// Kind represents a reversal pattern
type Kind string

const (
	BullishEngulfing Kind = "bullish_engulfing"
	BearishEngulfing Kind = "bearish_engulfing"
	BullishPinbar    Kind = "bullish_pinbar"
	BearishPinbar    Kind = "bearish_pinbar"
)

// Direction returns "bullish" or "bearish"
func (k Kind) Direction() string {
	switch k {
	case BullishEngulfing, BullishPinbar:
		return "bullish"
	case BearishEngulfing, BearishPinbar:
		return "bearish"
	default:
		return "neutral"
	}
}

// IsEngulfing reports whether k is a two-candle engulfing pattern
func (k Kind) IsEngulfing() bool {
	return k == BullishEngulfing || k == BearishEngulfing
}

// IsPinbar reports whether k is a confirmed pin-bar pattern
func (k Kind) IsPinbar() bool {
	return k == BullishPinbar || k == BearishPinbar
}

// Signal is a pattern match within a series. Reference is the candle whose
// geometry matched: the engulfing candle, or the pin-bar itself (not its confirmation).
type Signal struct {
	TriggerIndex int    `json:"trigger_index"`
	Kind         Kind   `json:"kind"`
	Reference    Candle `json:"reference"`
}

// EvaluatedSignal is a recent signal annotated with its entry price and
// distance to the latest price
type EvaluatedSignal struct {
	Signal
	EntryPrice      float64 `json:"entry_price"`
	CandlesAgo      int     `json:"candles_ago"`
	LastPrice       float64 `json:"last_price"`
	WithinThreshold bool    `json:"within_threshold"`
}

const (
	DefaultLookback           = 10
	DefaultProximityThreshold = 0.02
)

// Config controls signal evaluation
type Config struct {
	// Lookback is how many of the most recent candles a signal may trigger in
	Lookback int `json:"lookback" yaml:"lookback"`
	// ProximityThreshold is the relative distance |last-entry|/entry counted as "near"
	ProximityThreshold float64 `json:"proximity_threshold" yaml:"proximity_threshold"`
	// RequireProximity drops signals that are not near their entry price.
	// Off by default: every recent signal is reported and WithinThreshold is informational.
	RequireProximity bool `json:"require_proximity" yaml:"require_proximity"`
}

// DefaultConfig returns lookback 10, threshold 2%, proximity not required
func DefaultConfig() Config {
	return Config{
		Lookback:           DefaultLookback,
		ProximityThreshold: DefaultProximityThreshold,
	}
}

// Validate checks the configuration bounds
func (c Config) Validate() error {
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive, got %d", c.Lookback)
	}
	if c.ProximityThreshold <= 0 {
		return fmt.Errorf("proximity_threshold must be positive, got %g", c.ProximityThreshold)
	}
	return nil
}

// Detector detects reversal patterns and evaluates them against the latest price.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector creates a new detector. Zero or negative fields fall back to defaults.
func NewDetector(cfg Config) *Detector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.ProximityThreshold <= 0 {
		cfg.ProximityThreshold = DefaultProximityThreshold
	}
	return &Detector{cfg: cfg}
}

// Config returns the effective configuration
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect runs both detectors. Engulfing signals come first, then pin-bars.
func (d *Detector) Detect(series Series) []Signal {
	signals := DetectEngulfing(series)
	return append(signals, DetectPinbars(series)...)
}

// Evaluate detects signals, keeps those inside the lookback window, computes
// entry prices and checks proximity to lastPrice
func (d *Detector) Evaluate(series Series, lastPrice float64) []EvaluatedSignal {
	recent := FilterLookback(d.Detect(series), series.Len(), d.cfg.Lookback)

	evaluated := make([]EvaluatedSignal, 0, len(recent))
	for _, r := range recent {
		entry := EntryPrice(r.Signal)
		near := IsNearEntry(lastPrice, entry, d.cfg.ProximityThreshold)
		if d.cfg.RequireProximity && !near {
			continue
		}

		evaluated = append(evaluated, EvaluatedSignal{
			Signal:          r.Signal,
			EntryPrice:      entry,
			CandlesAgo:      r.CandlesAgo,
			LastPrice:       lastPrice,
			WithinThreshold: near,
		})
	}

	return evaluated
}

// EvaluateLatest evaluates against the close of the last candle
func (d *Detector) EvaluateLatest(series Series) []EvaluatedSignal {
	last, ok := series.Last()
	if !ok {
		return []EvaluatedSignal{}
	}
	return d.Evaluate(series, last.Close)
}
