package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"collabhub.io/realtime/internal/auth"
	"collabhub.io/realtime/internal/pkg/logger"
)

// JWTAuth returns a Gin middleware that verifies the caller's token against
// chain and populates the user id. Cookie, subprotocol and bearer header
// credentials are accepted; the query string is not.
func JWTAuth(chain auth.Chain) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, cred, err := chain.Authenticate(c.Request, false)
		if err != nil {
			appErr := auth.AsAppError(err)
			logger.Debug("request rejected",
				zap.String("path", c.FullPath()),
				zap.String("source", string(cred.Source)),
				zap.String("code", appErr.Code),
			)
			c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			})
			return
		}

		c.Set(string(ctxKeyUserID), claims.UserID)
		c.Request = c.Request.WithContext(SetUserContext(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

// UserID returns the id set by JWTAuth.
func UserID(c *gin.Context) string {
	return c.GetString(string(ctxKeyUserID))
}
