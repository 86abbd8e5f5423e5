package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventScanStarted    EventType = "SCAN_STARTED"
	EventScanCompleted  EventType = "SCAN_COMPLETED"
	EventSignalDetected EventType = "SIGNAL_DETECTED"
	EventFetchFailed    EventType = "FETCH_FAILED"
	EventScannerStarted EventType = "SCANNER_STARTED"
	EventScannerStopped EventType = "SCANNER_STOPPED"
	EventError          EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
	async       bool
}

// NewEventBus creates a bus that delivers each event on its own goroutine
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		async:       true,
	}
}

// NewSyncEventBus creates a bus that calls subscribers inline, in order
func NewSyncEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	subs := make([]Subscriber, 0, len(eb.subscribers[event.Type])+len(eb.allSubs))
	subs = append(subs, eb.subscribers[event.Type]...)
	subs = append(subs, eb.allSubs...)
	eb.mu.RUnlock()

	for _, sub := range subs {
		if eb.async {
			go sub(event)
		} else {
			sub(event)
		}
	}
}

// PublishScanStarted publishes a scan started event
func (eb *EventBus) PublishScanStarted(scanID string, units int) {
	eb.Publish(Event{
		Type: EventScanStarted,
		Data: map[string]interface{}{
			"scan_id": scanID,
			"units":   units,
		},
	})
}

// PublishScanCompleted publishes a scan summary
func (eb *EventBus) PublishScanCompleted(scanID string, units, signals, failures int, duration time.Duration) {
	eb.Publish(Event{
		Type: EventScanCompleted,
		Data: map[string]interface{}{
			"scan_id":     scanID,
			"units":       units,
			"signals":     signals,
			"failures":    failures,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// PublishSignal publishes a signal detected event
func (eb *EventBus) PublishSignal(scanID, symbol, timeframe, kind string, candlesAgo int, entryPrice, lastPrice float64, withinThreshold bool) {
	eb.Publish(Event{
		Type: EventSignalDetected,
		Data: map[string]interface{}{
			"scan_id":          scanID,
			"symbol":           symbol,
			"timeframe":        timeframe,
			"kind":             kind,
			"candles_ago":      candlesAgo,
			"entry_price":      entryPrice,
			"last_price":       lastPrice,
			"within_threshold": withinThreshold,
		},
	})
}

// PublishFetchFailed publishes a failed candle fetch
func (eb *EventBus) PublishFetchFailed(scanID, symbol, timeframe string, err error) {
	data := map[string]interface{}{
		"scan_id":   scanID,
		"symbol":    symbol,
		"timeframe": timeframe,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{Type: EventFetchFailed, Data: data})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
