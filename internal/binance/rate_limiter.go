package binance

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// AcquireResult represents the result of a non-blocking TryAcquire attempt
type AcquireResult struct {
	Acquired     bool
	WaitTime     time.Duration // suggested wait if not acquired
	Reason       string
	WeightBudget int
	CurrentUsage float64 // percent of max weight
}

// RateLimiter tracks Binance spot request weight per minute and trips a
// circuit breaker on 418/429 responses
type RateLimiter struct {
	mu sync.RWMutex

	circuitOpen bool
	banUntil    time.Time

	currentWeight int
	weightResetAt time.Time
	maxWeight     int
	threshold     float64 // share of maxWeight a scan may use

	consecutiveErrors int
	now               func() time.Time
}

// Spot endpoint weights
var endpointWeights = map[string]int{
	"/api/v3/klines":       2,
	"/api/v3/ticker/24hr":  80, // without symbol
	"/api/v3/exchangeInfo": 20,
}

const (
	DefaultMaxWeight       = 6000
	DefaultWeightThreshold = 0.6
	maxBackoff             = 30 * time.Minute
)

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return newRateLimiter(DefaultMaxWeight, DefaultWeightThreshold, time.Now)
}

func newRateLimiter(maxWeight int, threshold float64, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		maxWeight:     maxWeight,
		threshold:     threshold,
		weightResetAt: now().Add(time.Minute),
		now:           now,
	}
}

func (r *RateLimiter) resetIfExpiredLocked(now time.Time) {
	if now.After(r.weightResetAt) {
		r.currentWeight = 0
		r.weightResetAt = now.Add(time.Minute)
	}
}

func (r *RateLimiter) usageLocked() float64 {
	return float64(r.currentWeight) / float64(r.maxWeight) * 100
}

// TryAcquire atomically checks AND records the weight for endpoint
func (r *RateLimiter) TryAcquire(endpoint string) AcquireResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.resetIfExpiredLocked(now)

	if r.circuitOpen && now.Before(r.banUntil) {
		return AcquireResult{
			WaitTime:     r.banUntil.Sub(now),
			Reason:       "circuit_breaker_open",
			CurrentUsage: 100.0,
		}
	}
	if r.circuitOpen {
		r.circuitOpen = false
	}

	weight := getEndpointWeight(endpoint)
	limit := int(float64(r.maxWeight) * r.threshold)
	if r.currentWeight+weight > limit {
		wait := r.weightResetAt.Sub(now)
		if wait < 0 {
			wait = 100 * time.Millisecond
		}
		return AcquireResult{
			WaitTime:     wait,
			Reason:       fmt.Sprintf("weight_limit_exceeded_%d_of_%d", r.currentWeight, limit),
			WeightBudget: limit - r.currentWeight,
			CurrentUsage: r.usageLocked(),
		}
	}

	r.currentWeight += weight
	r.consecutiveErrors = 0

	return AcquireResult{
		Acquired:     true,
		WeightBudget: limit - r.currentWeight,
		CurrentUsage: r.usageLocked(),
	}
}

// RecordRequest records a request made after waiting out a denial
func (r *RateLimiter) RecordRequest(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resetIfExpiredLocked(r.now())
	r.currentWeight += getEndpointWeight(endpoint)
}

// RecordRateLimitError opens the circuit breaker until banUntilMs, or with
// exponential backoff when Binance gave no deadline
func (r *RateLimiter) RecordRateLimitError(banUntilMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consecutiveErrors++
	now := r.now()

	banUntil := time.UnixMilli(banUntilMs)
	if banUntilMs <= 0 {
		backoff := maxBackoff
		if r.consecutiveErrors < 5 {
			backoff = time.Duration(1<<uint(r.consecutiveErrors)) * time.Minute
		}
		banUntil = now.Add(backoff)
	}

	r.circuitOpen = true
	r.banUntil = banUntil
}

// IsCircuitOpen returns true if circuit breaker is open
func (r *RateLimiter) IsCircuitOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.circuitOpen && r.now().Before(r.banUntil)
}

// UpdateFromHeaders raises the tracked weight to what Binance reports
func (r *RateLimiter) UpdateFromHeaders(usedWeight1m int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if usedWeight1m > r.currentWeight {
		r.currentWeight = usedWeight1m
	}
}

// Status is a snapshot of the limiter for the API
type Status struct {
	CircuitOpen       bool      `json:"circuit_open"`
	CurrentWeight     int       `json:"current_weight"`
	MaxWeight         int       `json:"max_weight"`
	UsagePercent      float64   `json:"weight_usage_pct"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	ResetAt           time.Time `json:"reset_at"`
	BanUntil          time.Time `json:"ban_until,omitempty"`
}

// GetStatus returns the current rate limiter status
func (r *RateLimiter) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Status{
		CircuitOpen:       r.circuitOpen && r.now().Before(r.banUntil),
		CurrentWeight:     r.currentWeight,
		MaxWeight:         r.maxWeight,
		UsagePercent:      r.usageLocked(),
		ConsecutiveErrors: r.consecutiveErrors,
		ResetAt:           r.weightResetAt,
	}
	if s.CircuitOpen {
		s.BanUntil = r.banUntil
	}
	return s
}

func getEndpointWeight(endpoint string) int {
	if weight, ok := endpointWeights[endpoint]; ok {
		return weight
	}
	return 1
}

var banUntilPattern = regexp.MustCompile(`(?i)banned until (\d{13})`)

// ParseBanUntilFromError extracts ban timestamp from Binance error message
func ParseBanUntilFromError(errMsg string) int64 {
	m := banUntilPattern.FindStringSubmatch(errMsg)
	if m == nil {
		return 0
	}
	banUntil, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}

	now := time.Now()
	if banUntil > now.UnixMilli() && banUntil < now.Add(24*time.Hour).UnixMilli() {
		return banUntil
	}
	return 0
}
