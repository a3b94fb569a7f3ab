package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes binds every handler. public carries no auth middleware;
// protected must authenticate the caller.
func (s *Server) RegisterRoutes(public, protected gin.IRoutes) {
	public.GET("/health/live", s.GetLiveness)
	public.GET("/health/ready", s.GetReadiness)
	public.GET("/ws", s.ServeWebSocket)

	protected.GET("/notifications", s.ListNotifications)
	protected.GET("/notifications/unread-count", s.GetUnreadCount)
	protected.PATCH("/notifications/read-all", s.MarkAllNotificationsRead)
	protected.PATCH("/notifications/:id/read", s.MarkNotificationRead)
	protected.DELETE("/notifications/:id", s.DeleteNotification)
	protected.POST("/notifications/delete-many", s.DeleteNotifications)
	protected.POST("/notifications", s.CreateNotification)

	protected.POST("/events", s.PublishEvent)
	protected.GET("/presence/:userId", s.GetPresence)
}
