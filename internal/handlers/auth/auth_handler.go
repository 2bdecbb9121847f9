// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/http"

	"authsession-service/internal/domain/auth"
	domain "authsession-service/internal/domain/session"
	"authsession-service/internal/middleware"
	"authsession-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service is the part of the auth service the HTTP layer depends on.
type Service interface {
	Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error)
	Logout(ctx context.Context, p *auth.Principal) error
	Refresh(ctx context.Context, req *auth.RefreshRequest) (*auth.LoginResponse, error)
	ListSessions(ctx context.Context, p *auth.Principal) (*domain.SessionListResponse, error)
	TerminateOthers(ctx context.Context, p *auth.Principal) (*domain.TerminateOthersResponse, error)
	RevokeSession(ctx context.Context, p *auth.Principal, sessionID string) error
	UnlockAccount(ctx context.Context, identifier string) error
}

type AuthHandler struct {
	authService Service
	logger      *zap.Logger
}

func NewAuthHandler(authService Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ========== Login ==========

func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "identifier and password are required")
		return
	}

	req.IPAddress = middleware.ClientIP(c)
	req.UserAgent = c.GetHeader("User-Agent")

	loginResp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.logger.Info("login failed",
			zap.String("identifier", req.Identifier),
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", loginResp)
}

// ========== Refresh ==========

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "refresh_token is required")
		return
	}
	req.IPAddress = middleware.ClientIP(c)

	resp, err := h.authService.Refresh(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "token refreshed", resp)
}

// ========== Logout ==========

func (h *AuthHandler) Logout(c *gin.Context) {
	p := middleware.MustGetPrincipal(c)

	if err := h.authService.Logout(c.Request.Context(), p); err != nil {
		h.logger.Error("logout failed",
			zap.Int64("account_id", p.AccountID),
			zap.String("session_id", p.SessionID),
			zap.Error(err),
		)
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c *gin.Context) {
	p := middleware.MustGetPrincipal(c)

	response.Success(c, http.StatusOK, "authenticated", gin.H{
		"account_id":        p.AccountID,
		"username":          p.Username,
		"role":              p.Role,
		"session_id":        p.SessionID,
		"ip_changed":        p.IPChanged,
		"remaining_seconds": p.RemainingSecs,
	})
}

// ========== Sessions ==========

func (h *AuthHandler) ListSessions(c *gin.Context) {
	p := middleware.MustGetPrincipal(c)

	resp, err := h.authService.ListSessions(c.Request.Context(), p)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "sessions retrieved", resp)
}

func (h *AuthHandler) RevokeSession(c *gin.Context) {
	p := middleware.MustGetPrincipal(c)
	sessionID := c.Param("session_id")

	if err := h.authService.RevokeSession(c.Request.Context(), p, sessionID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "session revoked", nil)
}

func (h *AuthHandler) TerminateOthers(c *gin.Context) {
	p := middleware.MustGetPrincipal(c)

	resp, err := h.authService.TerminateOthers(c.Request.Context(), p)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "other sessions terminated", resp)
}

// ========== Admin ==========

func (h *AuthHandler) UnlockAccount(c *gin.Context) {
	var req auth.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "identifier is required")
		return
	}

	if err := h.authService.UnlockAccount(c.Request.Context(), req.Identifier); err != nil {
		response.FromError(c, err)
		return
	}

	if adminID, ok := middleware.GetAccountID(c); ok {
		h.logger.Info("account unlocked by admin",
			zap.Int64("admin_id", adminID),
			zap.String("identifier", req.Identifier),
		)
	}
	response.Success(c, http.StatusOK, "account unlocked", nil)
}
