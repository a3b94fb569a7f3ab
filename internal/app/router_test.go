package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub.io/realtime/internal/auth"
	"collabhub.io/realtime/internal/config"
)

func TestBuildCORSConfig(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		allowAll    bool
		credentials bool
		want        []string
	}{
		{name: "defaults to allowlist", origins: nil, credentials: true, want: config.DefaultAllowedOrigins},
		{name: "explicit origins", origins: []string{"https://example.com"}, credentials: true, want: []string{"https://example.com"}},
		{name: "wildcard disables credentials", origins: []string{"*", "https://example.com"}, allowAll: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildCORSConfig(&config.Config{Server: config.ServerConfig{
				AllowedOrigins:   tt.origins,
				AllowCredentials: true,
			}})
			assert.Equal(t, tt.allowAll, got.AllowAllOrigins)
			assert.Equal(t, tt.credentials, got.AllowCredentials)
			if tt.allowAll {
				assert.Empty(t, got.AllowOrigins)
			} else {
				assert.Equal(t, tt.want, got.AllowOrigins)
			}
			require.NoError(t, got.Validate())
		})
	}
}

func TestRouter_SQLiteEndToEnd(t *testing.T) {
	cfg := sqliteConfig(t)
	app, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)

	tok, _, err := auth.GenerateToken(auth.TokenConfig{
		SigningKey: []byte(cfg.Security.AccessSecret),
		Issuer:     cfg.Security.Issuer,
		ExpiresIn:  time.Minute,
	}, "alice")
	require.NoError(t, err)

	serve := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(""))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/health/live", "").Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/health/ready", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/api/v1/notifications", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/api/v1/log/level", "").Code)

	w := serve(http.MethodGet, "/api/v1/notifications/unread-count", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0}`, w.Body.String())

	w = serve(http.MethodGet, "/api/v1/log/level", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "level")
}

func TestRouter_WebSocketOriginsMatchCORS(t *testing.T) {
	cfg := sqliteConfig(t)
	app, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"

	tok, _, err := auth.GenerateToken(auth.TokenConfig{
		SigningKey: []byte(cfg.Security.AccessSecret),
		Issuer:     cfg.Security.Issuer,
		ExpiresIn:  time.Minute,
	}, "alice")
	require.NoError(t, err)

	tests := []struct {
		name       string
		origin     string
		wantStatus int
	}{
		{name: "default dev origin", origin: "http://localhost:3000", wantStatus: http.StatusSwitchingProtocols},
		{name: "second default origin", origin: "http://localhost:5173", wantStatus: http.StatusSwitchingProtocols},
		{name: "foreign origin", origin: "http://evil.example", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			header.Set("Origin", tt.origin)
			header.Set("Authorization", "Bearer "+tok)

			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusSwitchingProtocols {
				require.NoError(t, err)
				_ = conn.Close()
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "collabhub.db"),
		},
		Security: config.SecurityConfig{
			AccessSecret:  "access-secret-0123456789abcdef0123",
			RefreshSecret: "refresh-secret-0123456789abcdef012",
			Issuer:        "collabhub",
		},
		Realtime: config.RealtimeConfig{
			QueueCapacity:     20,
			HeartbeatInterval: time.Minute,
		},
		Notification: config.NotificationConfig{CleanupInterval: time.Hour},
		Worker:       config.WorkerConfig{GeneralPoolSize: 4, ConnPoolSize: 8},
	}
}
