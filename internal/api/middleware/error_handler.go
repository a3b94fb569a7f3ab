// Package middleware provides the gin middleware of the REST surface.
package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "collabhub.io/realtime/internal/pkg/errors"
	"collabhub.io/realtime/internal/pkg/logger"
)

// ErrorHandler is a Gin middleware that provides centralized error handling.
// It captures errors added via c.Error() and returns a consistent JSON response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := apperrors.From(err)

		if appErr.HTTPStatus >= 500 {
			logger.Error("Unhandled request error",
				zap.String("code", appErr.Code),
				zap.String("request_id", GetRequestID(c.Request.Context())),
				zap.Error(err),
			)
		} else {
			logger.Warn("Request error",
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
				zap.Error(appErr.Err),
			)
		}

		c.JSON(appErr.HTTPStatus, gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		})
	}
}
