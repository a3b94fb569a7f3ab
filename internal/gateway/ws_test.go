package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub.io/realtime/internal/auth"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/pkg/worker"
	"collabhub.io/realtime/internal/realtime"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newWSServer(t *testing.T, env *testEnv) string {
	t.Helper()

	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 4, ConnPoolSize: 16})
	require.NoError(t, err)

	env.manager.pools = pools
	srv := httptest.NewServer(env.manager)
	t.Cleanup(func() {
		pools.Shutdown()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func mintToken(t *testing.T, userID string) string {
	t.Helper()

	token, _, err := auth.GenerateToken(auth.TokenConfig{
		SigningKey: []byte(testSecret),
		Issuer:     "collabhub",
		ExpiresIn:  time.Minute,
	}, userID)
	require.NoError(t, err)
	return token
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wireFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServeHTTP_HandshakeAndFlushOrder(t *testing.T) {
	env := newTestEnv(t)
	url := newWSServer(t, env)
	env.notify(t, "alice", "queued while offline")

	dialer := websocket.Dialer{Subprotocols: []string{auth.Subprotocol, mintToken(t, "alice")}}
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.Equal(t, auth.Subprotocol, conn.Subprotocol())

	var names []string
	for range 3 {
		names = append(names, readFrame(t, conn).Event)
	}
	assert.Equal(t, []string{
		realtime.EventConnectionEstablished,
		realtime.EventNewNotification,
		realtime.EventNotificationCount,
	}, names)

	require.NoError(t, conn.WriteJSON(map[string]any{"event": realtime.EventGetNotificationCount}))
	f := readFrame(t, conn)
	require.Equal(t, realtime.EventNotificationCount, f.Event)

	var count realtime.CountPayload
	require.NoError(t, json.Unmarshal(f.Data, &count))
	assert.Equal(t, 1, count.Count)
}

func TestServeHTTP_LivePushOverSocket(t *testing.T) {
	env := newTestEnv(t)
	url := newWSServer(t, env)

	header := http.Header{"Authorization": []string{"Bearer " + mintToken(t, "alice")}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, realtime.EventConnectionEstablished, readFrame(t, conn).Event)
	require.Equal(t, realtime.EventNotificationCount, readFrame(t, conn).Event)

	n := env.notify(t, "alice", "hello")

	f := readFrame(t, conn)
	require.Equal(t, realtime.EventNewNotification, f.Event)
	var got struct {
		ID     string `json:"id"`
		Sender struct {
			Username string `json:"username"`
		} `json:"sender"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "bob", got.Sender.Username)
	assert.Equal(t, realtime.EventNotificationCount, readFrame(t, conn).Event)
}

func TestServeHTTP_RejectsBadCredential(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		code   string
	}{
		{name: "no credential", header: nil, code: apperrors.CodeAuthFailed},
		{name: "garbage token", header: http.Header{"Authorization": []string{"Bearer not-a-jwt"}}, code: apperrors.CodeTokenInvalid},
		{name: "unknown user", header: http.Header{"Authorization": []string{"Bearer " + mintToken(t, "ghost")}}, code: apperrors.CodeUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			url := newWSServer(t, env)

			conn, _, err := websocket.DefaultDialer.Dial(url, tt.header)
			require.NoError(t, err, "authentication failures still upgrade")
			defer conn.Close()

			f := readFrame(t, conn)
			require.Equal(t, realtime.EventError, f.Event)
			var payload realtime.ErrorPayload
			require.NoError(t, json.Unmarshal(f.Data, &payload))
			assert.Equal(t, tt.code, payload.Code)

			_, _, err = conn.ReadMessage()
			require.Error(t, err)
			assert.True(t, websocket.IsCloseError(err, CloseAuthFailed), "got %v", err)
		})
	}
}

func TestServeHTTP_UnavailableWithoutPools(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.manager)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServeHTTP_DisconnectGoesOffline(t *testing.T) {
	env := newTestEnv(t)
	url := newWSServer(t, env)

	header := http.Header{"Authorization": []string{"Bearer " + mintToken(t, "alice")}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	readFrame(t, conn)

	require.Eventually(t, func() bool { return env.dispatcher.Registry().IsOnline("alice") },
		time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !env.dispatcher.Registry().IsOnline("alice") },
		2*time.Second, 5*time.Millisecond)

	env.notify(t, "alice", "after disconnect")
	assert.Equal(t, 1, env.dispatcher.Queue().Len("alice"))
}

func TestCloseCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  *apperrors.AppError
		want int
	}{
		{"auth", apperrors.ErrAuthentication(apperrors.CodeTokenExpired, nil), CloseAuthFailed},
		{"internal", apperrors.Internal(apperrors.CodeInternal, "x"), websocket.CloseInternalServerErr},
		{"bad request", apperrors.ErrValidation("x"), websocket.ClosePolicyViolation},
		{"pool closed", apperrors.From(worker.ErrPoolClosed), websocket.CloseGoingAway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, closeCodeFor(tt.err))
		})
	}
}

func TestWSTransport_SendWhenClosed(t *testing.T) {
	tr := &wsTransport{send: make(chan []byte, 1), done: make(chan struct{})}

	require.NoError(t, tr.Send("a", nil))
	require.ErrorIs(t, tr.Send("b", nil), ErrSendBufferFull)

	tr.Close(websocket.CloseNormalClosure, "")
	tr.Close(websocket.CloseGoingAway, "ignored")
	require.ErrorIs(t, tr.Send("c", nil), ErrClosed)
	require.ErrorIs(t, tr.Send("c", nil), apperrors.ErrTransport)
	assert.Equal(t, websocket.CloseNormalClosure, tr.closeCode)
}
