package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncBusDelivery(t *testing.T) {
	bus := NewSyncEventBus()

	var specific, all []Event
	bus.Subscribe(EventSignalDetected, func(e Event) { specific = append(specific, e) })
	bus.SubscribeAll(func(e Event) { all = append(all, e) })

	bus.PublishScanStarted("scan-1", 4)
	bus.PublishSignal("scan-1", "BTCUSDT", "4h", "bullish_engulfing", 2, 9.0, 9.1, true)

	require.Len(t, specific, 1)
	assert.Equal(t, "BTCUSDT", specific[0].Data["symbol"])
	assert.Equal(t, 2, specific[0].Data["candles_ago"])
	assert.False(t, specific[0].Timestamp.IsZero())

	require.Len(t, all, 2)
	assert.Equal(t, EventScanStarted, all[0].Type)
	assert.Equal(t, EventSignalDetected, all[1].Type)
}

func TestAsyncBusDelivery(t *testing.T) {
	bus := NewEventBus()

	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	got := map[EventType]Event{}
	record := func(e Event) {
		mu.Lock()
		got[e.Type] = e
		mu.Unlock()
		wg.Done()
	}
	bus.Subscribe(EventFetchFailed, record)
	bus.Subscribe(EventScanCompleted, record)

	bus.PublishFetchFailed("scan-2", "ETHUSDT", "1d", errors.New("timeout"))
	bus.PublishScanCompleted("scan-2", 2, 0, 1, 1500*time.Millisecond)
	wg.Wait()

	assert.Equal(t, "timeout", got[EventFetchFailed].Data["error"])
	assert.Equal(t, int64(1500), got[EventScanCompleted].Data["duration_ms"])
}

func TestPublishKeepsTimestamp(t *testing.T) {
	bus := NewSyncEventBus()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var got Event
	bus.SubscribeAll(func(e Event) { got = e })
	bus.Publish(Event{Type: EventError, Timestamp: ts})

	assert.Equal(t, ts, got.Timestamp)
}
