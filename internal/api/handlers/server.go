// Package handlers implements the REST surface over the notification core:
// the caller's inbox, domain event ingestion, presence lookups, health probes
// and the websocket endpoint.
//
// Routes are registered by the app router; handlers do not register
// themselves.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"collabhub.io/realtime/internal/api/middleware"
	"collabhub.io/realtime/internal/domain"
	"collabhub.io/realtime/internal/notification"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/pkg/logger"
	"collabhub.io/realtime/internal/realtime"
)

// Pinger checks a backing service for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server implements all API handlers.
type Server struct {
	store      notification.Store
	factory    *notification.Factory
	events     *domain.EventDispatcher
	dispatcher *realtime.Dispatcher
	ws         http.Handler
	db         Pinger
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Store      notification.Store
	Factory    *notification.Factory
	Events     *domain.EventDispatcher
	Dispatcher *realtime.Dispatcher
	WebSocket  http.Handler
	DB         Pinger
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		store:      deps.Store,
		factory:    deps.Factory,
		events:     deps.Events,
		dispatcher: deps.Dispatcher,
		ws:         deps.WebSocket,
		db:         deps.DB,
	}
}

// callerID returns the authenticated user, or records an auth error.
func callerID(c *gin.Context) (string, bool) {
	if uid := middleware.UserID(c); uid != "" {
		return uid, true
	}
	fail(c, apperrors.Unauthorized(apperrors.CodeAuthFailed, "authentication required"))
	return "", false
}

// fail hands err to the error middleware and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// pushCount sends the user's fresh unread count to their live connections.
func (s *Server) pushCount(ctx context.Context, userID string) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		logger.Warn("unread count unavailable", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.dispatcher.PushLive(userID, realtime.EventNotificationCount, realtime.CountPayload{Count: count})
}
