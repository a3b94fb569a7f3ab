package app

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"collabhub.io/realtime/internal/api/handlers"
	"collabhub.io/realtime/internal/api/middleware"
	"collabhub.io/realtime/internal/auth"
	"collabhub.io/realtime/internal/config"
	"collabhub.io/realtime/internal/pkg/logger"
)

func newRouter(cfg *config.Config, server *handlers.Server, verifier auth.Chain) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), cors.New(buildCORSConfig(cfg)), middleware.ErrorHandler())

	api := router.Group("/api/v1")
	protected := api.Group("", middleware.JWTAuth(verifier))
	server.RegisterRoutes(api, protected)

	levelHandler := gin.WrapH(logger.LevelHandler())
	protected.GET("/log/level", levelHandler)
	protected.PUT("/log/level", levelHandler)

	return router
}

// buildCORSConfig turns the configured origins into a cors config. A "*"
// entry allows every origin and disables credentials, since browsers reject
// that combination.
func buildCORSConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		AllowWebSockets:  true,
		MaxAge:           12 * time.Hour,
	}

	origins := cfg.Server.EffectiveOrigins()
	if slices.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = origins
	}
	return corsCfg
}
