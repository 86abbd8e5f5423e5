package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, m *JWTManager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	api := r.Group("/api", Middleware(m))
	api.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"client_id": GetClientID(c)})
	})
	api.POST("/scan", RequireScope(ScopeScan), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return r
}

func bearer(t *testing.T, m *JWTManager, scope string) string {
	t.Helper()
	resp, err := m.GenerateAccessToken(ClientClaims{ClientID: "cli", Scope: scope})
	require.NoError(t, err)
	return "Bearer " + resp.AccessToken
}

func TestMiddleware(t *testing.T) {
	m, err := NewJWTManager("test-secret", time.Hour)
	require.NoError(t, err)
	r := newTestRouter(t, m)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"valid", bearer(t, m, ScopeRead), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.code != "" {
				assert.Equal(t, tt.code, body["error"])
			} else {
				assert.Equal(t, "cli", body["client_id"])
			}
		})
	}
}

func TestRequireScope(t *testing.T) {
	m, _ := NewJWTManager("test-secret", time.Hour)
	r := newTestRouter(t, m)

	req := httptest.NewRequest(http.MethodPost, "/api/scan", nil)
	req.Header.Set("Authorization", bearer(t, m, ScopeRead))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/scan", nil)
	req.Header.Set("Authorization", bearer(t, m, ScopeScan))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
