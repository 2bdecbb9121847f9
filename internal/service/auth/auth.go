// internal/service/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authsession-service/internal/domain/auth"
	domain "authsession-service/internal/domain/session"
	xerrors "authsession-service/internal/pkg/errors"
	"authsession-service/internal/pkg/jwt"
	"authsession-service/internal/pkg/logger"
	"authsession-service/internal/pkg/metrics"
	"authsession-service/internal/pkg/session"

	"go.uber.org/zap"
)

// SessionPolicy holds the timeouts, in seconds, applied to new sessions.
type SessionPolicy struct {
	AbsoluteTimeout   int
	IdleTimeout       int
	RememberMeTimeout int
}

func (p SessionPolicy) timeouts(rememberMe bool) (absolute, idle int) {
	if rememberMe && p.RememberMeTimeout > 0 {
		return p.RememberMeTimeout, p.IdleTimeout
	}
	return p.AbsoluteTimeout, p.IdleTimeout
}

type AuthService struct {
	accounts       auth.AccountRepository
	passwords      auth.PasswordVerifier
	jwtManager     *jwt.Manager
	sessionManager *session.Manager
	throttle       *session.LoginThrottle
	policy         SessionPolicy
	logger         *zap.Logger
	now            func() time.Time
}

func NewAuthService(
	accounts auth.AccountRepository,
	passwords auth.PasswordVerifier,
	jwtManager *jwt.Manager,
	sessionManager *session.Manager,
	throttle *session.LoginThrottle,
	policy SessionPolicy,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		accounts:       accounts,
		passwords:      passwords,
		jwtManager:     jwtManager,
		sessionManager: sessionManager,
		throttle:       throttle,
		policy:         policy,
		logger:         logger.OrNop(log),
		now:            time.Now,
	}
}

// WithClock is used by tests to keep the service in step with the session manager.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// ========== Login ==========

// Login checks the throttle, verifies credentials, opens a session and issues a token pair.
func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: identifier and password are required", xerrors.ErrInvalidArgument)
	}

	if s.throttle.IsLocked(ctx, identifier) {
		metrics.LoginLockouts.Inc()
		retry := time.Duration(s.throttle.RemainingLockSeconds(ctx, identifier)) * time.Second
		s.logger.Warn("login rejected, identifier locked",
			zap.String("identifier", identifier),
			zap.Duration("retry_after", retry),
		)
		return nil, &xerrors.LockedError{RetryAfter: retry}
	}

	account, err := s.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, s.loginFailed(ctx, identifier)
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if !account.IsActive() || !s.passwords.Verify(req.Password, account.PasswordHash) {
		return nil, s.loginFailed(ctx, identifier)
	}

	s.throttle.Reset(ctx, identifier)

	absolute, idle := s.policy.timeouts(req.RememberMe)
	device := domain.NewDeviceInfo(req.IPAddress, req.UserAgent)

	sess, err := s.sessionManager.CreateSession(ctx, account.ID, device, absolute, idle, req.RememberMe)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	resp, err := s.issuePair(account, sess)
	if err != nil {
		if derr := s.sessionManager.DestroySession(ctx, sess.ID); derr != nil {
			s.logger.Error("failed to roll back session", zap.String("session_id", sess.ID), zap.Error(derr))
		}
		return nil, err
	}

	if err := s.accounts.UpdateLastLogin(ctx, account.ID, s.now()); err != nil {
		s.logger.Error("failed to update last login", zap.Int64("account_id", account.ID), zap.Error(err))
	}

	s.logger.Info("login succeeded",
		zap.Int64("account_id", account.ID),
		zap.String("session_id", sess.ID),
		zap.String("device", device.Label()),
	)
	return resp, nil
}

// loginFailed records the failure and reports a lock when this attempt crossed the threshold.
func (s *AuthService) loginFailed(ctx context.Context, identifier string) error {
	count := s.throttle.RecordFailure(ctx, identifier)
	if count >= s.throttle.MaxFailures() {
		retry := time.Duration(s.throttle.RemainingLockSeconds(ctx, identifier)) * time.Second
		s.logger.Warn("identifier locked after repeated failures",
			zap.String("identifier", identifier),
			zap.Int64("failures", count),
		)
		return &xerrors.LockedError{RetryAfter: retry}
	}
	return &xerrors.CredentialsError{RemainingAttempts: s.throttle.RemainingAttempts(ctx, identifier)}
}

func (s *AuthService) issuePair(account *auth.Account, sess *domain.Session) (*auth.LoginResponse, error) {
	display := jwt.Display{Username: account.Username, Role: account.Role}

	access, err := s.jwtManager.Issue(account.ID, display, sess.ID, sess.RememberMe)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.jwtManager.IssueRefresh(account.ID, sess.ID, sess.RememberMe)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &auth.LoginResponse{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int(access.TTL(s.now()).Seconds()),
		ExpiresAt:    access.ExpiresAt,
		SessionID:    sess.ID,
		User:         auth.NewUserInfo(account),
	}, nil
}

// ========== Logout ==========

// Logout destroys the caller's session and revokes its access token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, p *auth.Principal) error {
	if err := s.sessionManager.DestroySession(ctx, p.SessionID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}

	if ttl := p.TokenExpires.Sub(s.now()); ttl > 0 {
		if out := s.sessionManager.BlacklistToken(ctx, p.TokenID, ttl); out.Degraded() {
			s.logger.Warn("access token not blacklisted, cache unavailable", zap.String("jti", p.TokenID))
		}
	}
	return nil
}

// ========== Refresh ==========

// Refresh rotates the token pair. The presented refresh token is revoked.
func (s *AuthService) Refresh(ctx context.Context, req *auth.RefreshRequest) (*auth.LoginResponse, error) {
	claims, err := s.jwtManager.Verifier.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if s.sessionManager.IsTokenBlacklisted(ctx, claims.ID) {
		return nil, xerrors.ErrTokenBlacklisted
	}

	sess, err := s.sessionManager.ValidateAndRefreshSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.AccountID != claims.AccountID {
		return nil, xerrors.ErrUnauthorized
	}

	var ipChanged bool
	if req.IPAddress != "" {
		ipChanged, _ = s.sessionManager.CheckIPChange(sess, req.IPAddress)
	}
	if ipChanged {
		s.logger.Warn("session refreshed from a new IP",
			zap.String("session_id", sess.ID),
			zap.Int64("account_id", sess.AccountID),
			zap.String("ip", req.IPAddress),
		)
	}

	account, err := s.accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if !account.IsActive() {
		return nil, xerrors.ErrUnauthorized
	}

	if claims.ExpiresAt != nil {
		s.sessionManager.BlacklistToken(ctx, claims.ID, claims.ExpiresAt.Time.Sub(s.now()))
	}

	resp, err := s.issuePair(account, sess)
	if err != nil {
		return nil, err
	}
	resp.IPChanged = ipChanged
	return resp, nil
}

// ========== Authenticate ==========

// Authenticate resolves an access token to a principal and records session activity.
func (s *AuthService) Authenticate(ctx context.Context, token, clientIP string) (*auth.Principal, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	if s.sessionManager.IsTokenBlacklisted(ctx, claims.ID) {
		return nil, xerrors.ErrTokenBlacklisted
	}

	sess, err := s.sessionManager.ValidateAndRefreshSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.AccountID != claims.AccountID {
		s.logger.Warn("token account does not match session owner",
			zap.String("session_id", sess.ID),
			zap.Int64("token_account_id", claims.AccountID),
		)
		return nil, xerrors.ErrUnauthorized
	}

	var ipChanged bool
	if clientIP != "" {
		ipChanged, _ = s.sessionManager.CheckIPChange(sess, clientIP)
	}

	status := s.sessionManager.Status(sess)
	p := &auth.Principal{
		AccountID:     claims.AccountID,
		Username:      claims.Username,
		Role:          claims.Role,
		SessionID:     sess.ID,
		TokenID:       claims.ID,
		IPChanged:     ipChanged,
		AboutToExpire: status.AboutToExpire,
		RemainingSecs: status.RemainingSeconds,
	}
	if claims.ExpiresAt != nil {
		p.TokenExpires = claims.ExpiresAt.Time
	}
	return p, nil
}

// ========== Session Management ==========

func (s *AuthService) ListSessions(ctx context.Context, p *auth.Principal) (*domain.SessionListResponse, error) {
	sessions, err := s.sessionManager.FindUserSessions(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	resp := domain.ToListResponse(sessions, p.SessionID, s.now())
	return &resp, nil
}

func (s *AuthService) TerminateOthers(ctx context.Context, p *auth.Principal) (*domain.TerminateOthersResponse, error) {
	n, err := s.sessionManager.TerminateOtherSessions(ctx, p.SessionID, p.AccountID)
	if err != nil {
		return nil, err
	}
	return &domain.TerminateOthersResponse{Terminated: n}, nil
}

// RevokeSession destroys one of the caller's own sessions. Sessions owned by
// other accounts are reported as forbidden without revealing whether they exist.
func (s *AuthService) RevokeSession(ctx context.Context, p *auth.Principal, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is required", xerrors.ErrInvalidArgument)
	}

	sessions, err := s.sessionManager.FindUserSessions(ctx, p.AccountID)
	if err != nil {
		return err
	}

	for _, sess := range sessions {
		if sess.ID == sessionID {
			return s.sessionManager.DestroySessionWithReason(ctx, sessionID, session.ReasonRevoked)
		}
	}
	return xerrors.ErrForbidden
}

// UnlockAccount clears the login throttle for identifier.
func (s *AuthService) UnlockAccount(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("%w: identifier is required", xerrors.ErrInvalidArgument)
	}
	s.throttle.Unlock(ctx, identifier)
	s.logger.Info("login throttle cleared", zap.String("identifier", identifier))
	return nil
}
