// internal/app/router.go
package app

import (
	authHandler "authsession-service/internal/handlers/auth"
	healthHandler "authsession-service/internal/handlers/health"
	wsHandler "authsession-service/internal/handlers/websocket"
	"authsession-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	HealthHandler  *healthHandler.Handler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health & Metrics ====================
	api.GET("/health", h.HealthHandler.Check)
	api.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== WebSocket ====================
	api.GET("/ws", h.AuthMiddleware.Auth(), h.WSHandler.HandleConnection)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/refresh", h.AuthHandler.Refresh)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.GET("/me", h.AuthHandler.Me)
	}

	// ==================== Sessions ====================
	sessions := api.Group("/sessions")
	sessions.Use(h.AuthMiddleware.Auth())
	{
		sessions.GET("", h.AuthHandler.ListSessions)
		sessions.DELETE("/:session_id", h.AuthHandler.RevokeSession)
		sessions.POST("/terminate-others", h.AuthHandler.TerminateOthers)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.POST("/accounts/unlock", h.AuthHandler.UnlockAccount)
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
