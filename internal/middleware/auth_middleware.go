// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"authsession-service/internal/domain/auth"
	"authsession-service/internal/pkg/logger"
	"authsession-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderSessionWarning   = "X-Session-Warning"
	HeaderSessionRemaining = "X-Session-Remaining"
)

// Authenticator resolves a bearer token to the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token, clientIP string) (*auth.Principal, error)
}

type AuthMiddleware struct {
	authenticator Authenticator
	logger        *zap.Logger
}

func NewAuthMiddleware(authenticator Authenticator, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger.OrNop(log),
	}
}

// Auth validates the bearer token and the session behind it, then stores the principal on the context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		principal, err := m.authenticator.Authenticate(c.Request.Context(), token, ClientIP(c))
		if err != nil {
			m.logger.Debug("authentication rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			response.FromError(c, err)
			return
		}

		c.Header(HeaderSessionRemaining, strconv.FormatInt(principal.RemainingSecs, 10))
		if principal.AboutToExpire {
			c.Header(HeaderSessionWarning, "session about to expire")
		}

		c.Set(principalKey, principal)
		c.Set("account_id", principal.AccountID)
		c.Set("session_id", principal.SessionID)
		c.Set("jti", principal.TokenID)

		c.Next()
	}
}

// RequireRole must run after Auth.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "AUTHZ_001", "authentication required")
			return
		}

		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "AUTHZ_001", "insufficient permissions", map[string]interface{}{
			"required_roles": roles,
		})
	}
}

// AdminOnly returns Auth followed by an admin role check.
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin),
	}
}

// extractToken reads the Bearer token, falling back to the token query
// parameter for websocket upgrades where browsers cannot set headers.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	return c.Query("token")
}
