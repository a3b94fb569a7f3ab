package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"collabhub.io/realtime/internal/auth"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/pkg/logger"
	"collabhub.io/realtime/internal/pkg/worker"
	"collabhub.io/realtime/internal/realtime"
)

// Transport errors. Both match apperrors.ErrTransport.
var (
	ErrSendBufferFull = fmt.Errorf("send buffer full: %w", apperrors.ErrTransport)
	ErrClosed         = fmt.Errorf("connection closed: %w", apperrors.ErrTransport)
)

// wsTransport is a gorilla websocket with a buffered outbound queue drained
// by writePump.
type wsTransport struct {
	conn *websocket.Conn
	cfg  Config
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
	closeCode int
	closeMsg  string
}

func newWSTransport(conn *websocket.Conn, cfg Config) *wsTransport {
	return &wsTransport{
		conn:      conn,
		cfg:       cfg,
		send:      make(chan []byte, cfg.SendBuffer),
		done:      make(chan struct{}),
		closeCode: websocket.CloseNormalClosure,
	}
}

// Send encodes the envelope and queues it without blocking.
func (t *wsTransport) Send(event string, payload any) error {
	frame, err := json.Marshal(realtime.Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	select {
	case t.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close asks writePump to flush pending frames and send a close frame.
func (t *wsTransport) Close(code int, reason string) {
	t.closeOnce.Do(func() {
		t.closeCode = code
		t.closeMsg = reason
		close(t.done)
	})
}

func (t *wsTransport) writePump(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case frame := <-t.send:
			if err := t.write(websocket.TextMessage, frame); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				t.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := t.write(websocket.PingMessage, nil); err != nil {
				logger.Debug("websocket ping failed", zap.Error(err))
				t.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-t.done:
			t.finish()
			return
		case <-ctx.Done():
			t.Close(websocket.CloseGoingAway, "server shutting down")
			t.finish()
			return
		}
	}
}

// finish writes frames queued before Close, so a final error event reaches
// the client, then the close frame.
func (t *wsTransport) finish() {
	for {
		select {
		case frame := <-t.send:
			if err := t.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			_ = t.write(websocket.CloseMessage, websocket.FormatCloseMessage(t.closeCode, t.closeMsg))
			return
		}
	}
}

func (t *wsTransport) write(messageType int, data []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(messageType, data)
}

func (m *Manager) readPump(ctx context.Context, s *Session, t *wsTransport) {
	defer func() {
		m.Close(s)
		t.Close(websocket.CloseNormalClosure, "")
	}()

	t.conn.SetReadLimit(m.cfg.MaxMessageSize)
	_ = t.conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	t.conn.SetPongHandler(func(string) error {
		m.dispatcher.Registry().Touch(s.ID())
		return t.conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Debug("websocket read ended", zap.String("conn_id", s.ID()), zap.Error(err))
			}
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
		m.dispatcher.Registry().Touch(s.ID())
		m.HandleMessage(ctx, s, data)
	}
}

func (m *Manager) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    []string{auth.Subprotocol},
	}
	if len(m.cfg.AllowedOrigins) > 0 {
		origins := m.cfg.AllowedOrigins
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		}
	}
	return u
}

// ServeHTTP authenticates and upgrades a websocket handshake, then runs the
// connection's pumps on the connection pool.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.pools == nil {
		http.Error(w, "websocket endpoint not available", http.StatusServiceUnavailable)
		return
	}

	claims, authErr := m.Authenticate(r)

	conn, err := m.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	if authErr != nil {
		rejectConn(conn, m.cfg.WriteTimeout, authErr)
		return
	}

	t := newWSTransport(conn, m.cfg)
	if err := m.pools.SubmitDetached(worker.PoolConn, t.writePump); err != nil {
		logger.Warn("connection pool exhausted", zap.Error(err))
		rejectConn(conn, m.cfg.WriteTimeout, err)
		return
	}

	ctx := m.pools.Context()
	s, err := m.Open(ctx, claims, t)
	if err != nil {
		appErr := apperrors.From(err)
		if appErr.HTTPStatus >= 500 {
			logger.Error("session activation failed", zap.String("user_id", claims.UserID), zap.Error(err))
		}
		_ = t.Send(realtime.EventError, realtime.ErrorPayload{Code: appErr.Code, Message: appErr.Message})
		t.Close(closeCodeFor(appErr), appErr.Message)
		return
	}

	if err := m.pools.SubmitDetached(worker.PoolConn, func(ctx context.Context) {
		m.readPump(ctx, s, t)
	}); err != nil {
		logger.Warn("connection pool exhausted", zap.Error(err))
		m.Close(s)
		t.Close(websocket.CloseTryAgainLater, "server busy")
	}
}

// rejectConn writes one error event and a close frame on a connection whose
// pumps never started.
func rejectConn(conn *websocket.Conn, writeTimeout time.Duration, err error) {
	defer conn.Close()

	appErr := apperrors.From(err)
	deadline := time.Now().Add(writeTimeout)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.WriteJSON(realtime.Envelope{
		Event: realtime.EventError,
		Data:  realtime.ErrorPayload{Code: appErr.Code, Message: appErr.Message},
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCodeFor(appErr), appErr.Message), deadline)
}

func closeCodeFor(appErr *apperrors.AppError) int {
	switch {
	case errors.Is(appErr, apperrors.ErrUnauthorized):
		return CloseAuthFailed
	case errors.Is(appErr, worker.ErrPoolClosed):
		return websocket.CloseGoingAway
	case appErr.HTTPStatus >= 500:
		return websocket.CloseInternalServerErr
	default:
		return websocket.ClosePolicyViolation
	}
}
