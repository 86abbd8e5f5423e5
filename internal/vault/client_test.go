package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"binance-pattern-scanner/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVault serves a minimal KV v2 engine mounted at secret/
type fakeVault struct {
	mu    sync.Mutex
	data  map[string]map[string]interface{}
	reads int
	token string
}

func newFakeVault(t *testing.T) (*fakeVault, *httptest.Server) {
	t.Helper()
	fv := &fakeVault{data: make(map[string]map[string]interface{})}
	srv := httptest.NewServer(http.HandlerFunc(fv.serve))
	t.Cleanup(srv.Close)
	return fv, srv
}

func (f *fakeVault) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = r.Header.Get("X-Vault-Token")

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/v1/sys/health" {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"initialized": true,
			"sealed":      false,
			"standby":     false,
		})
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.reads++
		d, ok := f.data[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data":     d,
				"metadata": map[string]interface{}{"version": 1},
			},
		})
	case http.MethodPut, http.MethodPost:
		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.data[r.URL.Path] = body.Data
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"version": 1},
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func testConfig(addr string) config.VaultConfig {
	return config.VaultConfig{
		Enabled:    true,
		Address:    addr,
		Token:      "root-token",
		MountPath:  "secret",
		SecretPath: "pattern-scanner/auth",
	}
}

func TestDisabledClient(t *testing.T) {
	c, err := NewClient(config.VaultConfig{})
	require.NoError(t, err)
	assert.False(t, c.IsEnabled())

	_, err = c.GetSecrets(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, c.StoreSecrets(context.Background(), Secrets{}), ErrDisabled)
	assert.NoError(t, c.Health(context.Background()))

	cfg := config.Default()
	cfg.AuthConfig.JWTSecret = "local"
	require.NoError(t, c.ApplyToConfig(context.Background(), cfg))
	assert.Equal(t, "local", cfg.AuthConfig.JWTSecret)
}

func TestStoreAndGetSecrets(t *testing.T) {
	fv, srv := newFakeVault(t)
	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.StoreSecrets(ctx, Secrets{JWTSecret: "s3cret", TelegramBotToken: "tg"}))
	assert.Equal(t, "root-token", fv.token)

	c.ClearCache()
	s, err := c.GetSecrets(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", s.JWTSecret)
	assert.Equal(t, "tg", s.TelegramBotToken)
	assert.Empty(t, s.DiscordWebhookURL)

	// second read is served from cache
	_, err = c.GetSecrets(ctx)
	require.NoError(t, err)
	fv.mu.Lock()
	assert.Equal(t, 1, fv.reads)
	fv.mu.Unlock()
}

func TestGetSecretsNotFound(t *testing.T) {
	_, srv := newFakeVault(t)
	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.GetSecrets(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyToConfig(t *testing.T) {
	fv, srv := newFakeVault(t)
	fv.data["/v1/secret/data/pattern-scanner/auth"] = map[string]interface{}{
		"jwt_secret":          "from-vault",
		"discord_webhook_url": "https://discord.example/hook",
	}

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.AuthConfig.JWTSecret = "local"
	cfg.NotificationConfig.Telegram.BotToken = "keep-me"

	require.NoError(t, c.ApplyToConfig(context.Background(), cfg))
	assert.Equal(t, "from-vault", cfg.AuthConfig.JWTSecret)
	assert.Equal(t, "keep-me", cfg.NotificationConfig.Telegram.BotToken)
	assert.Equal(t, "https://discord.example/hook", cfg.NotificationConfig.Discord.WebhookURL)
}

func TestHealth(t *testing.T) {
	_, srv := newFakeVault(t)
	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)
	assert.NoError(t, c.Health(context.Background()))
}

func TestDataPath(t *testing.T) {
	c := &Client{config: config.VaultConfig{MountPath: "/kv/", SecretPath: "/scanner/"}}
	assert.Equal(t, "kv/data/scanner", c.dataPath())

	c = &Client{config: config.VaultConfig{SecretPath: "x"}}
	assert.Equal(t, "secret/data/x", c.dataPath())
}
