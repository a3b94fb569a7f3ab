package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"collabhub.io/realtime/internal/notification"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/pkg/logger"
	"collabhub.io/realtime/internal/realtime"
)

type handlerFunc func(ctx context.Context, s *Session, data json.RawMessage) error

func (m *Manager) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		realtime.EventGetNotificationCount:   m.onGetCount,
		realtime.EventGetRecentNotifications: m.onGetRecent,
		realtime.EventMarkNotificationRead:   m.onMarkRead,
		realtime.EventMarkAllRead:            m.onMarkAllRead,
		realtime.EventDeleteNotification:     m.onDelete,
		realtime.EventSetStatus:              m.onSetStatus,
		realtime.EventTypingStart:            m.typing(realtime.EventUserTyping),
		realtime.EventTypingEnd:              m.typing(realtime.EventUserStoppedTyping),
		realtime.EventJoinTeam:               m.onJoinTeam,
		realtime.EventLeaveTeam:              m.onLeaveTeam,
	}
}

// HandleMessage decodes one client frame and runs its handler. Failures,
// including panics, are reported to the client as an error event; the
// connection stays open.
func (m *Manager) HandleMessage(ctx context.Context, s *Session, raw []byte) {
	if s.State() != StateActive {
		return
	}

	var in realtime.Inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
		m.reportError(s, "", apperrors.ErrValidation("frame must be a JSON object with an event name"))
		return
	}

	handler, ok := m.handlers[in.Event]
	if !ok {
		m.reportError(s, in.Event, apperrors.BadRequest(apperrors.CodeUnknownEvent, "unknown event "+in.Event))
		return
	}

	if err := m.invoke(ctx, s, in, handler); err != nil {
		m.reportError(s, in.Event, err)
	}
}

func (m *Manager) invoke(ctx context.Context, s *Session, in realtime.Inbound, handler handlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panic",
				zap.String("event", in.Event),
				zap.String("conn_id", s.ID()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = apperrors.Internal(apperrors.CodeInternal, "internal error")
		}
	}()
	return handler(ctx, s, in.Data)
}

func (m *Manager) reportError(s *Session, event string, err error) {
	appErr := apperrors.From(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error("event handler failed",
			zap.String("event", event),
			zap.String("conn_id", s.ID()),
			zap.Error(err),
		)
	} else {
		logger.Debug("event rejected",
			zap.String("event", event),
			zap.String("conn_id", s.ID()),
			zap.String("code", appErr.Code),
		)
	}
	if sendErr := s.Send(realtime.EventError, realtime.ErrorPayload{
		Code:    appErr.Code,
		Message: appErr.Message,
		Event:   event,
	}); sendErr != nil {
		logger.Warn("could not report error to client", zap.String("conn_id", s.ID()), zap.Error(sendErr))
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.ErrValidation(fmt.Sprintf("invalid payload: %v", err))
	}
	return nil
}

func (m *Manager) onGetCount(ctx context.Context, s *Session, _ json.RawMessage) error {
	return m.sendCount(ctx, s)
}

type recentRequest struct {
	Limit int   `json:"limit"`
	Skip  int   `json:"skip"`
	Read  *bool `json:"read"`
}

func (m *Manager) onGetRecent(ctx context.Context, s *Session, data json.RawMessage) error {
	var req recentRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	result, err := m.store.FindMany(ctx, s.UserID(), notification.ListOptions{
		Limit: req.Limit,
		Skip:  req.Skip,
		Read:  req.Read,
	}.Normalize())
	if err != nil {
		return err
	}
	return s.Send(realtime.EventRecentNotifications, result)
}

type notificationRef struct {
	NotificationID string `json:"notificationId"`
}

func (r notificationRef) validate() error {
	if strings.TrimSpace(r.NotificationID) == "" {
		return apperrors.ErrValidation("notificationId is required")
	}
	return nil
}

func (m *Manager) onMarkRead(ctx context.Context, s *Session, data json.RawMessage) error {
	var ref notificationRef
	if err := decode(data, &ref); err != nil {
		return err
	}
	if err := ref.validate(); err != nil {
		return err
	}
	n, err := m.store.MarkRead(ctx, ref.NotificationID, s.UserID())
	if err != nil {
		return err
	}
	if err := s.Send(realtime.EventNotificationMarkedRead, map[string]any{
		"notificationId": n.ID,
		"readAt":         n.ReadAt,
	}); err != nil {
		return err
	}
	m.syncCount(ctx, s.UserID())
	return nil
}

func (m *Manager) onMarkAllRead(ctx context.Context, s *Session, _ json.RawMessage) error {
	count, err := m.store.MarkAllRead(ctx, s.UserID())
	if err != nil {
		return err
	}
	if err := s.Send(realtime.EventAllReadSuccess, map[string]any{"count": count}); err != nil {
		return err
	}
	m.syncCount(ctx, s.UserID())
	return nil
}

func (m *Manager) onDelete(ctx context.Context, s *Session, data json.RawMessage) error {
	var ref notificationRef
	if err := decode(data, &ref); err != nil {
		return err
	}
	if err := ref.validate(); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, ref.NotificationID, s.UserID()); err != nil {
		return err
	}
	if err := s.Send(realtime.EventNotificationDeleted, ref); err != nil {
		return err
	}
	m.syncCount(ctx, s.UserID())
	return nil
}

func (m *Manager) onSetStatus(_ context.Context, s *Session, data json.RawMessage) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := decode(data, &req); err != nil {
		return err
	}
	if !validStatus(req.Status) {
		return apperrors.ErrValidation("status must be one of online, away, busy, offline")
	}
	s.setStatus(req.Status)

	payload := map[string]any{"userId": s.UserID(), "status": req.Status}
	for _, room := range m.dispatcher.Registry().UserRooms(s.UserID()) {
		if realtime.IsUserRoom(room) {
			continue
		}
		m.dispatcher.EmitToRoom(room, realtime.EventUserPresenceChange, payload, s.ID())
	}
	return nil
}

type typingRequest struct {
	ConversationID string `json:"conversationId"`
	TeamID         string `json:"teamId"`
}

func (m *Manager) typing(event string) handlerFunc {
	return func(_ context.Context, s *Session, data json.RawMessage) error {
		var req typingRequest
		if err := decode(data, &req); err != nil {
			return err
		}

		var room string
		switch {
		case req.ConversationID != "":
			room = realtime.ConversationRoom(req.ConversationID)
		case req.TeamID != "":
			room = realtime.TeamRoom(req.TeamID)
		default:
			return apperrors.ErrValidation("conversationId or teamId is required")
		}

		identity := s.Identity()
		m.dispatcher.EmitToRoom(room, event, map[string]any{
			"userId":         identity.ID,
			"name":           identity.Name,
			"conversationId": req.ConversationID,
			"teamId":         req.TeamID,
		}, s.ID())
		return nil
	}
}

type teamRequest struct {
	TeamID string `json:"teamId"`
}

func (r teamRequest) validate() error {
	if strings.TrimSpace(r.TeamID) == "" {
		return apperrors.ErrValidation("teamId is required")
	}
	return nil
}

func (m *Manager) onJoinTeam(_ context.Context, s *Session, data json.RawMessage) error {
	var req teamRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	room := realtime.TeamRoom(req.TeamID)
	if m.dispatcher.Registry().JoinRoom(s, room) {
		identity := s.Identity()
		m.dispatcher.EmitToRoom(room, realtime.EventTeamMemberActive, map[string]any{
			"userId": identity.ID,
			"name":   identity.Name,
			"teamId": req.TeamID,
		}, s.ID())
	}
	return s.Send(realtime.EventJoinedTeam, req)
}

func (m *Manager) onLeaveTeam(_ context.Context, s *Session, data json.RawMessage) error {
	var req teamRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	m.dispatcher.Registry().LeaveRoom(s, realtime.TeamRoom(req.TeamID))
	return s.Send(realtime.EventLeftTeam, req)
}
