package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"binance-pattern-scanner/config"
	"binance-pattern-scanner/internal/events"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingServer struct {
	mu       sync.Mutex
	paths    []string
	payloads []map[string]interface{}
	status   int
}

func newRecordingServer(t *testing.T, status int) (*recordingServer, *httptest.Server) {
	t.Helper()
	rs := &recordingServer{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		rs.mu.Lock()
		rs.paths = append(rs.paths, r.URL.Path)
		rs.payloads = append(rs.payloads, body)
		rs.mu.Unlock()
		w.WriteHeader(rs.status)
	}))
	t.Cleanup(srv.Close)
	return rs, srv
}

func (rs *recordingServer) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.payloads)
}

func TestTelegramSendSignal(t *testing.T) {
	rs, srv := newRecordingServer(t, http.StatusOK)

	m := NewManager(zerolog.Nop())
	m.AddNotifier(NewTelegramNotifier(TelegramConfig{
		BotToken: "abc",
		ChatID:   "42",
		Enabled:  true,
		APIBase:  srv.URL,
	}))
	require.True(t, m.IsEnabled())

	err := m.SendSignal(context.Background(), SignalAlert{
		Symbol:     "BTCUSDT",
		Timeframe:  "4h",
		Kind:       "bullish_engulfing",
		CandlesAgo: 2,
		EntryPrice: 64000.5,
		LastPrice:  64100,
	})
	require.NoError(t, err)

	require.Equal(t, 1, rs.count())
	assert.Equal(t, "/botabc/sendMessage", rs.paths[0])
	assert.Equal(t, "42", rs.payloads[0]["chat_id"])
	assert.Contains(t, rs.payloads[0]["text"], "BTCUSDT 4H")
	assert.Contains(t, rs.payloads[0]["text"], "Entry ≈ 64000.50")
}

func TestDiscordColorsBearishSignal(t *testing.T) {
	rs, srv := newRecordingServer(t, http.StatusNoContent)

	m := NewManager(zerolog.Nop())
	m.AddNotifier(NewDiscordNotifier(DiscordConfig{WebhookURL: srv.URL, Enabled: true}))

	require.NoError(t, m.SendSignal(context.Background(), SignalAlert{
		Symbol: "ETHUSDT", Timeframe: "1d", Kind: "bearish_pinbar", EntryPrice: 3000,
	}))

	require.Equal(t, 1, rs.count())
	embeds := rs.payloads[0]["embeds"].([]interface{})
	embed := embeds[0].(map[string]interface{})
	assert.Equal(t, float64(0xFF0000), embed["color"])
	assert.Len(t, embed["fields"], 3)
}

func TestSendReportsProviderError(t *testing.T) {
	_, srv := newRecordingServer(t, http.StatusInternalServerError)

	m := NewManager(zerolog.Nop())
	m.AddNotifier(NewDiscordNotifier(DiscordConfig{WebhookURL: srv.URL, Enabled: true}))

	err := m.SendError(context.Background(), "scan failed", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestDisabledProvidersAreSkipped(t *testing.T) {
	m := NewManagerFromConfig(config.NotificationConfig{
		Enabled:  true,
		Telegram: config.TelegramConfig{Enabled: true, BotToken: "x"}, // no chat id
		Discord:  config.DiscordConfig{Enabled: false, WebhookURL: "http://127.0.0.1:1"},
	}, zerolog.Nop())

	assert.False(t, m.IsEnabled())
	assert.NoError(t, m.SendScanSummary(context.Background(), 60, 3, 1, time.Second))
}

func TestManagerDisabled(t *testing.T) {
	rs, srv := newRecordingServer(t, http.StatusOK)

	m := NewManagerFromConfig(config.NotificationConfig{
		Enabled: false,
		Discord: config.DiscordConfig{Enabled: true, WebhookURL: srv.URL},
	}, zerolog.Nop())

	assert.False(t, m.IsEnabled())
	require.NoError(t, m.SendError(context.Background(), "t", "m"))
	assert.Equal(t, 0, rs.count())
}

func TestAttachForwardsSignalEvents(t *testing.T) {
	rs, srv := newRecordingServer(t, http.StatusNoContent)

	m := NewManager(zerolog.Nop())
	m.AddNotifier(NewDiscordNotifier(DiscordConfig{WebhookURL: srv.URL, Enabled: true}))

	bus := events.NewSyncEventBus()
	m.Attach(bus)

	bus.PublishScanStarted("scan-1", 4)
	bus.PublishSignal("scan-1", "SOLUSDT", "4h", "bullish_pinbar", 1, 150.25, 151, true)

	require.Equal(t, 1, rs.count())
	embed := rs.payloads[0]["embeds"].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, embed["title"], "SOLUSDT 4H")
	assert.Contains(t, embed["description"], "Near entry: yes")
}

func TestAttachForwardsErrorsAndSummaries(t *testing.T) {
	rs, srv := newRecordingServer(t, http.StatusNoContent)

	m := NewManagerFromConfig(config.NotificationConfig{
		Enabled:     true,
		ScanSummary: true,
		Discord:     config.DiscordConfig{Enabled: true, WebhookURL: srv.URL},
	}, zerolog.Nop())

	bus := events.NewSyncEventBus()
	m.Attach(bus)

	bus.PublishScanCompleted("scan-2", 6, 2, 1, 1500*time.Millisecond)
	bus.PublishError("scanner", "scan failed", errors.New("ticker endpoint down"))

	require.Equal(t, 2, rs.count())

	summary := rs.payloads[0]["embeds"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "📊 Scan completed", summary["title"])
	assert.Contains(t, summary["description"], "Units: 6\nSignals: 2\nFailures: 1\nDuration: 1.5s")

	alert := rs.payloads[1]["embeds"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "⚠️ scanner", alert["title"])
	assert.Equal(t, "scan failed: ticker endpoint down", alert["description"])
}

func TestScanSummariesAreOptIn(t *testing.T) {
	rs, srv := newRecordingServer(t, http.StatusNoContent)

	m := NewManagerFromConfig(config.NotificationConfig{
		Enabled: true,
		Discord: config.DiscordConfig{Enabled: true, WebhookURL: srv.URL},
	}, zerolog.Nop())

	bus := events.NewSyncEventBus()
	m.Attach(bus)

	bus.PublishScanCompleted("scan-3", 2, 0, 0, time.Second)
	assert.Equal(t, 0, rs.count())
}
