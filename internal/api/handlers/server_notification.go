package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"collabhub.io/realtime/internal/notification"
	apperrors "collabhub.io/realtime/internal/pkg/errors"
)

// NotificationList is the paged response of ListNotifications.
type NotificationList struct {
	Items []*notification.Notification `json:"items"`
	Total int                          `json:"total"`
	Limit int                          `json:"limit"`
	Skip  int                          `json:"skip"`
}

// ListNotifications handles GET /notifications.
func (s *Server) ListNotifications(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	opts, err := listOptions(c)
	if err != nil {
		fail(c, err)
		return
	}
	opts = opts.Normalize()

	result, err := s.store.FindMany(c.Request.Context(), userID, opts)
	if err != nil {
		fail(c, err)
		return
	}

	items := result.Items
	if items == nil {
		items = []*notification.Notification{}
	}
	c.JSON(http.StatusOK, NotificationList{
		Items: items,
		Total: result.Total,
		Limit: opts.Limit,
		Skip:  opts.Skip,
	})
}

func listOptions(c *gin.Context) (notification.ListOptions, error) {
	var opts notification.ListOptions

	intParam := func(name string) (int, error) {
		raw := c.Query(name)
		if raw == "" {
			return 0, nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, apperrors.ErrValidation(name + " must be a non-negative integer")
		}
		return v, nil
	}

	var err error
	if opts.Limit, err = intParam("limit"); err != nil {
		return opts, err
	}
	if opts.Skip, err = intParam("skip"); err != nil {
		return opts, err
	}

	if raw := c.Query("read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, apperrors.ErrValidation("read must be true or false")
		}
		opts.Read = &read
	}
	if raw := c.Query("type"); raw != "" {
		typ := notification.Type(raw)
		if !typ.Known() {
			return opts, apperrors.ErrValidation("unknown notification type " + raw)
		}
		opts.Type = &typ
	}
	if raw := c.Query("priority"); raw != "" {
		p := notification.Priority(raw)
		if !p.Valid() {
			return opts, apperrors.ErrValidation("priority must be one of high, medium, low")
		}
		opts.Priority = &p
	}
	switch sort := notification.Sort(c.Query("sort")); sort {
	case "", notification.SortNewest, notification.SortOldest, notification.SortPriority:
		opts.Sort = sort
	default:
		return opts, apperrors.ErrValidation("sort must be one of newest, oldest, priority")
	}
	return opts, nil
}

// GetUnreadCount handles GET /notifications/unread-count.
func (s *Server) GetUnreadCount(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	count, err := s.store.CountUnread(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkNotificationRead handles PATCH /notifications/:id/read.
func (s *Server) MarkNotificationRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	n, err := s.store.MarkRead(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		fail(c, err)
		return
	}
	s.pushCount(c.Request.Context(), userID)
	c.JSON(http.StatusOK, n)
}

// MarkAllNotificationsRead handles PATCH /notifications/read-all.
func (s *Server) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	count, err := s.store.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	s.pushCount(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// DeleteNotification handles DELETE /notifications/:id.
func (s *Server) DeleteNotification(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	if err := s.store.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		fail(c, err)
		return
	}
	s.pushCount(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

type deleteManyRequest struct {
	IDs []string `json:"ids"`
}

// DeleteNotifications handles POST /notifications/delete-many.
func (s *Server) DeleteNotifications(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req deleteManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.ErrValidation("invalid request body"))
		return
	}
	if len(req.IDs) == 0 {
		fail(c, apperrors.ErrValidation("ids must not be empty"))
		return
	}

	count, err := s.store.DeleteMany(c.Request.Context(), req.IDs, userID)
	if err != nil {
		fail(c, err)
		return
	}
	if count > 0 {
		s.pushCount(c.Request.Context(), userID)
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

type createNotificationRequest struct {
	RecipientID string                `json:"recipientId"`
	Type        notification.Type     `json:"type"`
	Title       string                `json:"title"`
	Content     string                `json:"content"`
	EntityType  string                `json:"entityType"`
	EntityID    string                `json:"entityId"`
	ActionURL   string                `json:"actionUrl"`
	MetaData    map[string]any        `json:"metaData"`
	Priority    notification.Priority `json:"priority"`
}

// CreateNotification handles POST /notifications. The caller is the sender.
func (s *Server) CreateNotification(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.ErrValidation("invalid request body"))
		return
	}

	n, err := s.factory.Create(c.Request.Context(), notification.Params{
		RecipientID: strings.TrimSpace(req.RecipientID),
		Type:        req.Type,
		Title:       req.Title,
		Content:     req.Content,
		SenderID:    userID,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		ActionURL:   req.ActionURL,
		MetaData:    req.MetaData,
		Priority:    req.Priority,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}
