// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"
	"time"

	"authsession-service/internal/middleware"
	"authsession-service/internal/pkg/response"
	ws "authsession-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts upgrades from allowedOrigins; "*" accepts any origin.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
		logger: logger,
	}
}

// HandleConnection upgrades an authenticated request. Must run after the auth middleware.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Unauthorized(c, "missing authentication token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", middleware.ClientIP(c)),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, principal.AccountID, principal.SessionID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns connection counts (admin only)
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "websocket stats", gin.H{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now().UTC(),
	})
}
