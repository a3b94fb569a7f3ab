package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"collabhub.io/realtime/internal/domain"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/pkg/logger"
)

type publishEventRequest struct {
	EventType  domain.EventType `json:"eventType"`
	Recipients []string         `json:"recipients"`
	EntityType string           `json:"entityType"`
	EntityID   string           `json:"entityId"`
	Subject    string           `json:"subject"`
	ActorName  string           `json:"actorName"`
	Detail     string           `json:"detail"`
	MetaData   map[string]any   `json:"metaData"`
}

// PublishEvent handles POST /events. The caller is the actor; recipients get
// one notification each through the registered triggers.
func (s *Server) PublishEvent(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req publishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.ErrValidation("invalid request body"))
		return
	}

	event := domain.NewEvent(req.EventType, userID, req.Recipients...).
		WithEntity(req.EntityType, req.EntityID, req.Subject)
	event.ActorName = req.ActorName
	event.Detail = req.Detail
	event.MetaData = req.MetaData

	if err := event.Validate(); err != nil {
		fail(c, apperrors.ErrValidation(err.Error()))
		return
	}

	status := "accepted"
	if err := s.events.Dispatch(c.Request.Context(), event); err != nil {
		logger.Warn("domain event partially delivered",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
		status = "partial"
	}

	c.JSON(http.StatusAccepted, gin.H{
		"eventId": event.EventID,
		"status":  status,
	})
}
