// internal/handlers/health/health.go
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by the Postgres wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheChecker is satisfied by the session cache.
type CacheChecker interface {
	IsAvailable(ctx context.Context) bool
}

type Handler struct {
	db    Pinger
	cache CacheChecker
}

func NewHandler(db Pinger, cache CacheChecker) *Handler {
	return &Handler{db: db, cache: cache}
}

// Check reports 503 only when the durable store is down. A cache outage
// degrades the service but does not make it unhealthy.
func (h *Handler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok", "database": "up", "cache": "up"}

	if err := h.db.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["database"] = "down"
	}
	if !h.cache.IsAvailable(ctx) {
		body["cache"] = "down"
		if status == http.StatusOK {
			body["status"] = "degraded"
		}
	}

	c.JSON(status, body)
}
