package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"binance-pattern-scanner/config"
	"binance-pattern-scanner/internal/auth"
	"binance-pattern-scanner/internal/binance"
	"binance-pattern-scanner/internal/cache"
	"binance-pattern-scanner/internal/events"
	"binance-pattern-scanner/internal/scanner"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type testEnv struct {
	server *Server
	bus    *events.EventBus
	jwt    *auth.JWTManager
}

func newTestEnv(t *testing.T, withAuth bool, mutate func(*config.ServerConfig)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock := binance.NewMockClient(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	bus := events.NewSyncEventBus()

	scanCfg := scanner.DefaultConfig()
	scanCfg.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	scanCfg.Timeframes = []string{"4h"}
	sc := scanner.NewScanner(mock, scanCfg, bus, zerolog.Nop())

	srvCfg := config.Default().ServerConfig
	if mutate != nil {
		mutate(&srvCfg)
	}

	deps := Deps{
		Scanner:  sc,
		Provider: mock,
		EventBus: bus,
		Logger:   zerolog.Nop(),
	}

	env := &testEnv{bus: bus}
	if withAuth {
		m, err := auth.NewJWTManager("api-test-secret", time.Hour)
		require.NoError(t, err)
		deps.JWT = m
		env.jwt = m
	}

	env.server = NewServer(srvCfg, deps)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = env.server.Shutdown(ctx)
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func (e *testEnv) token(t *testing.T, scope string) string {
	t.Helper()
	resp, err := e.jwt.GenerateAccessToken(auth.ClientClaims{ClientID: "test", Scope: scope})
	require.NoError(t, err)
	return resp.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, false, nil)

	w, body := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.NotContains(t, body, "last_scan")
}

type fakeVault struct {
	err error
}

func (f *fakeVault) Health(context.Context) error { return f.err }

func TestHealthReportsVault(t *testing.T) {
	env := newTestEnv(t, false, nil)
	vault := &fakeVault{}
	env.server.deps.Vault = vault

	w, body := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "healthy", body["vault"])

	vault.err = errors.New("vault is sealed")
	w, body = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unavailable", body["vault"])

	w, body = env.do(t, http.MethodGet, "/api/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	v := body["data"].(map[string]interface{})["vault"].(map[string]interface{})
	assert.Equal(t, false, v["healthy"])
	assert.Equal(t, "vault is sealed", v["error"])
}

func TestHealthPingsCache(t *testing.T) {
	if testing.Short() {
		t.Skip("dials an unreachable address")
	}

	cs, err := cache.NewCacheService(config.RedisConfig{Enabled: true, Address: "127.0.0.1:1", PoolSize: 1}, zerolog.Nop())
	require.NoError(t, err)
	defer cs.Close()

	env := newTestEnv(t, false, nil)
	env.server.deps.Cache = cs

	w, body := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "degraded", body["cache"])
}

func TestRequestsCarryTraceID(t *testing.T) {
	env := newTestEnv(t, false, nil)

	w1, _ := env.do(t, http.MethodGet, "/health", nil, "")
	w2, _ := env.do(t, http.MethodGet, "/health", nil, "")
	id1, id2 := w1.Header().Get(traceHeader), w2.Header().Get(traceHeader)
	assert.Len(t, id1, 36)
	assert.NotEqual(t, id1, id2)
}

func TestScanLifecycle(t *testing.T) {
	env := newTestEnv(t, false, nil)

	w, _ := env.do(t, http.MethodGet, "/api/scan/latest", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body := env.do(t, http.MethodPost, "/api/scan", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	scanID := data["scan_id"].(string)
	assert.NotEmpty(t, scanID)
	assert.Len(t, data["units"], 2)

	w, body = env.do(t, http.MethodGet, "/api/scan/latest", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, scanID, body["data"].(map[string]interface{})["scan_id"])

	w, body = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "last_scan")
}

func TestScanTriggerIsRateLimited(t *testing.T) {
	env := newTestEnv(t, false, func(c *config.ServerConfig) {
		c.ScanTriggerRate = time.Hour
	})

	w, _ := env.do(t, http.MethodPost, "/api/scan", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, http.MethodPost, "/api/scan", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
}

func TestAsyncScan(t *testing.T) {
	env := newTestEnv(t, false, nil)

	completed := make(chan struct{}, 1)
	env.bus.Subscribe(events.EventScanCompleted, func(events.Event) {
		completed <- struct{}{}
	})

	w, body := env.do(t, http.MethodPost, "/api/scan?async=true", nil, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "started", body["status"])

	select {
	case <-completed:
	case <-time.After(5 * time.Second):
		t.Fatal("async scan did not complete")
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	env := newTestEnv(t, false, nil)

	candles := []map[string]interface{}{
		{"timestamp": 1000, "open": 10, "high": 10.5, "low": 8.5, "close": 9},
		{"timestamp": 2000, "open": 8.8, "high": 11, "low": 8.7, "close": 10.5},
	}

	w, body := env.do(t, http.MethodPost, "/api/patterns/evaluate", gin.H{
		"candles": candles,
		"config":  gin.H{"lookback": 5},
	}, "")
	require.Equal(t, http.StatusOK, w.Code, body)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["candles"])
	cfg := data["config"].(map[string]interface{})
	assert.Equal(t, float64(5), cfg["lookback"])
	assert.Equal(t, 0.02, cfg["proximity_threshold"])

	signals := data["signals"].([]interface{})
	require.Len(t, signals, 1)
	sig := signals[0].(map[string]interface{})
	assert.Equal(t, "bullish_engulfing", sig["kind"])
	assert.InDelta(t, 9.65, sig["entry_price"], 1e-9)
	assert.Equal(t, float64(0), sig["candles_ago"])
	assert.Equal(t, 10.5, sig["last_price"])
	assert.Equal(t, false, sig["within_threshold"])
}

func TestEvaluateEndpointWithLastPrice(t *testing.T) {
	env := newTestEnv(t, false, nil)

	candles := []map[string]interface{}{
		{"timestamp": 1000, "open": 10, "high": 10.5, "low": 8.5, "close": 9},
		{"timestamp": 2000, "open": 8.8, "high": 11, "low": 8.7, "close": 10.5},
	}

	w, body := env.do(t, http.MethodPost, "/api/patterns/evaluate", gin.H{
		"candles":    candles,
		"config":     gin.H{"require_proximity": true},
		"last_price": 9.7,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	signals := body["data"].(map[string]interface{})["signals"].([]interface{})
	require.Len(t, signals, 1)
	assert.Equal(t, true, signals[0].(map[string]interface{})["within_threshold"])
}

func TestEvaluateEndpointRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, false, nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing candles", gin.H{}},
		{"unordered", gin.H{"candles": []gin.H{
			{"timestamp": 2000, "open": 1, "high": 2, "low": 0.5, "close": 1.5},
			{"timestamp": 1000, "open": 1, "high": 2, "low": 0.5, "close": 1.5},
		}}},
		{"broken candle", gin.H{"candles": []gin.H{
			{"timestamp": 1000, "open": 1, "high": 0.9, "low": 0.5, "close": 1.5},
		}}},
		{"bad config", gin.H{"candles": []gin.H{}, "config": gin.H{"lookback": -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := env.do(t, http.MethodPost, "/api/patterns/evaluate", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, true, body["error"])
		})
	}
}

func TestTopSymbolsEndpoint(t *testing.T) {
	env := newTestEnv(t, false, nil)

	w, body := env.do(t, http.MethodGet, "/api/symbols/top?n=3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "USDT", data["quote"])
	assert.Len(t, data["symbols"], 3)

	w, _ = env.do(t, http.MethodGet, "/api/symbols/top?n=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, false, nil)

	w, body := env.do(t, http.MethodGet, "/api/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	sc := data["scanner"].(map[string]interface{})
	assert.Equal(t, "USDT", sc["quote"])
	assert.Equal(t, float64(50), sc["limit"])
	assert.Equal(t, float64(0), data["ws_clients"])
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, true, nil)

	w, _ := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, http.MethodGet, "/api/status", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", body["error"])

	w, _ = env.do(t, http.MethodGet, "/api/status", nil, env.token(t, auth.ScopeRead))
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/scan", nil, env.token(t, auth.ScopeRead))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/scan", nil, env.token(t, auth.ScopeScan))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	env := newTestEnv(t, true, nil)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+env.token(t, auth.ScopeRead), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var welcome map[string]interface{}
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "CONNECTED", welcome["type"])
	assert.Eventually(t, func() bool {
		return env.server.Hub().GetClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	env.bus.PublishSignal("scan-1", "BTCUSDT", "4h", "bearish_pinbar", 2, 100, 101, true)

	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.EventSignalDetected, ev.Type)
	assert.Equal(t, "BTCUSDT", ev.Data["symbol"])
	assert.Equal(t, "bearish_pinbar", ev.Data["kind"])
}

func TestCorsConfig(t *testing.T) {
	c := corsConfig("*")
	assert.True(t, c.AllowAllOrigins)
	assert.Empty(t, c.AllowOrigins)

	c = corsConfig("")
	assert.True(t, c.AllowAllOrigins)

	c = corsConfig("http://localhost:3000, https://scanner.example")
	assert.False(t, c.AllowAllOrigins)
	assert.Equal(t, []string{"http://localhost:3000", "https://scanner.example"}, c.AllowOrigins)
	assert.True(t, c.AllowCredentials)
}

func TestClientLimiter(t *testing.T) {
	l := newClientLimiter(rate.Every(time.Hour), 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
	assert.Equal(t, 2, l.size())
}
