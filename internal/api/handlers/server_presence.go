package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetPresence handles GET /presence/:userId.
func (s *Server) GetPresence(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		return
	}

	userID := c.Param("userId")
	registry := s.dispatcher.Registry()
	c.JSON(http.StatusOK, gin.H{
		"userId":      userID,
		"online":      registry.IsOnline(userID),
		"connections": registry.ConnectionCount(userID),
	})
}

// ServeWebSocket handles GET /ws. The gateway authenticates the handshake
// itself so rejected clients still receive a close frame.
func (s *Server) ServeWebSocket(c *gin.Context) {
	s.ws.ServeHTTP(c.Writer, c.Request)
}
