// Package gateway runs client connections: handshake authentication, the
// per-connection session state machine, inbound event handling, heartbeats
// and the websocket transport.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"collabhub.io/realtime/internal/auth"
	"collabhub.io/realtime/internal/notification"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/pkg/logger"
	"collabhub.io/realtime/internal/pkg/worker"
	"collabhub.io/realtime/internal/realtime"
	"collabhub.io/realtime/internal/user"
)

// CloseAuthFailed is the websocket close code sent after a rejected handshake.
const CloseAuthFailed = 4401

// Config tunes the gateway.
type Config struct {
	HeartbeatInterval time.Duration
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	SendBuffer        int
	MaxMessageSize    int64
	AllowQueryToken   bool
	AllowedOrigins    []string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		PingInterval:      25 * time.Second,
		PongTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SendBuffer:        256,
		MaxMessageSize:    64 * 1024,
		AllowQueryToken:   true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// Manager owns the lifecycle of every client session.
type Manager struct {
	cfg        Config
	verifier   auth.Chain
	users      user.Directory
	store      notification.Store
	dispatcher *realtime.Dispatcher
	pools      *worker.Pools
	handlers   map[string]handlerFunc
}

// NewManager creates a manager. pools may be nil in tests that drive sessions
// directly; the websocket endpoint and heartbeat require it.
func NewManager(
	cfg Config,
	verifier auth.Chain,
	users user.Directory,
	store notification.Store,
	dispatcher *realtime.Dispatcher,
	pools *worker.Pools,
) *Manager {
	m := &Manager{
		cfg:        cfg.withDefaults(),
		verifier:   verifier,
		users:      users,
		store:      store,
		dispatcher: dispatcher,
		pools:      pools,
	}
	m.handlers = m.routes()
	return m
}

// Authenticate verifies the handshake credential of r.
func (m *Manager) Authenticate(r *http.Request) (*auth.Claims, error) {
	claims, cred, err := m.verifier.Authenticate(r, m.cfg.AllowQueryToken)
	if err != nil {
		logger.Info("handshake rejected",
			zap.String("remote", r.RemoteAddr),
			zap.String("source", string(cred.Source)),
			zap.Error(err),
		)
		return nil, auth.AsAppError(err)
	}
	if cred.Source.Insecure() {
		logger.Warn("token passed in query string, prefer cookie or header",
			zap.String("user_id", claims.UserID),
			zap.String("remote", r.RemoteAddr),
		)
	}
	return claims, nil
}

// Open resolves the claims to a user and activates a new session over
// transport. On error the session never reaches Active and the caller must
// close the transport.
func (m *Manager) Open(ctx context.Context, claims *auth.Claims, transport Transport) (*Session, error) {
	s := newSession(uuid.NewString(), transport)

	identity, err := m.users.FindIdentity(ctx, claims.UserID)
	if err != nil {
		s.advance(StateConnecting, StateDisconnected)
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperrors.ErrAuthentication(apperrors.CodeUserNotFound, err)
		}
		return nil, fmt.Errorf("resolve identity %s: %w", claims.UserID, err)
	}
	s.authenticate(identity)

	if err := m.activate(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// activate greets the client, registers the session, flushes the user's
// pending queue and finally sends the unread count.
func (m *Manager) activate(ctx context.Context, s *Session) error {
	identity := s.Identity()
	if err := s.Send(realtime.EventConnectionEstablished, map[string]any{
		"connectionId": s.ID(),
		"user":         identity,
	}); err != nil {
		s.advance(StateAuthenticated, StateDisconnected)
		return fmt.Errorf("greet connection: %w", err)
	}

	flushed := m.dispatcher.Attach(s)
	s.advance(StateAuthenticated, StateActive)

	logger.Info("connection active",
		zap.String("conn_id", s.ID()),
		zap.String("user_id", identity.ID),
		zap.Int("flushed", flushed),
		zap.Int("connections", m.dispatcher.Registry().ConnectionCount(identity.ID)),
	)

	if err := m.sendCount(ctx, s); err != nil {
		logger.Warn("initial unread count skipped",
			zap.String("conn_id", s.ID()),
			zap.Error(err),
		)
	}
	return nil
}

// Close moves the session to Disconnected and runs the offline side effects
// when it was the user's last connection. Safe to call more than once.
func (m *Manager) Close(s *Session) {
	wasActive := s.advance(StateActive, StateDisconnected)
	if !wasActive {
		s.advance(StateAuthenticated, StateDisconnected)
		s.advance(StateConnecting, StateDisconnected)
		return
	}

	userID := s.UserID()
	offline, rooms := m.dispatcher.Detach(s)
	logger.Info("connection closed",
		zap.String("conn_id", s.ID()),
		zap.String("user_id", userID),
		zap.Bool("offline", offline),
	)
	if !offline {
		return
	}

	presence := map[string]any{"userId": userID, "status": StatusOffline}
	for _, room := range rooms {
		if realtime.IsUserRoom(room) {
			continue
		}
		if teamID := realtime.TeamID(room); teamID != "" {
			m.dispatcher.EmitToRoom(room, realtime.EventTeamMemberOffline, map[string]any{
				"userId": userID,
				"teamId": teamID,
			}, "")
		}
		m.dispatcher.EmitToRoom(room, realtime.EventUserPresenceChange, presence, "")
	}
}

// StartHeartbeat broadcasts a heartbeat to every live connection until the
// service context ends.
func (m *Manager) StartHeartbeat() error {
	if m.pools == nil {
		return errors.New("heartbeat requires worker pools")
	}
	return m.pools.SubmitDetached(worker.PoolGeneral, func(ctx context.Context) {
		m.runHeartbeat(ctx, m.cfg.HeartbeatInterval)
	})
}

func (m *Manager) runHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sent := m.dispatcher.BroadcastToAll(realtime.EventHeartbeat, map[string]any{
				"timestamp": now.UTC(),
			})
			conns, users, rooms := m.dispatcher.Registry().Stats()
			logger.Debug("heartbeat",
				zap.Int("sent", sent),
				zap.Int("connections", conns),
				zap.Int("users", users),
				zap.Int("rooms", rooms),
			)
		}
	}
}

func (m *Manager) sendCount(ctx context.Context, s *Session) error {
	count, err := m.store.CountUnread(ctx, s.UserID())
	if err != nil {
		return err
	}
	return s.Send(realtime.EventNotificationCount, realtime.CountPayload{Count: count})
}

// syncCount pushes the fresh unread count to every connection of userID.
func (m *Manager) syncCount(ctx context.Context, userID string) {
	count, err := m.store.CountUnread(ctx, userID)
	if err != nil {
		logger.Warn("unread count unavailable", zap.String("user_id", userID), zap.Error(err))
		return
	}
	m.dispatcher.PushLive(userID, realtime.EventNotificationCount, realtime.CountPayload{Count: count})
}
