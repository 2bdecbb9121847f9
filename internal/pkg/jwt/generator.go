// internal/pkg/jwt/generator.go
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// IssuedToken is a signed token plus the identifiers callers need for revocation.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TTL returns the lifetime left at now.
func (t *IssuedToken) TTL(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}

type Generator struct {
	keys     keySet
	issuer   string
	audience string
	kid      string // key id for rotation

	accessTTL     time.Duration
	rememberMeTTL time.Duration
	refreshTTL    time.Duration

	now func() time.Time
}

func newGenerator(keys keySet, cfg Config, now func() time.Time) *Generator {
	return &Generator{
		keys:          keys,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		kid:           cfg.KID,
		accessTTL:     cfg.AccessTTL,
		rememberMeTTL: cfg.RememberMeTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           now,
	}
}

// AccessTTL is the access token lifetime for the given remember-me choice.
func (g *Generator) AccessTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return g.rememberMeTTL
	}
	return g.accessTTL
}

// Issue signs an access token bound to sessionID.
func (g *Generator) Issue(accountID int64, display Display, sessionID string, rememberMe bool) (*IssuedToken, error) {
	return g.generate(accountID, display, sessionID, TokenTypeAccess, g.AccessTTL(rememberMe))
}

// IssueRefresh signs a refresh token bound to sessionID. It never outlives the remember-me window.
func (g *Generator) IssueRefresh(accountID int64, sessionID string, rememberMe bool) (*IssuedToken, error) {
	ttl := g.refreshTTL
	if rememberMe && g.rememberMeTTL > ttl {
		ttl = g.rememberMeTTL
	}
	return g.generate(accountID, Display{}, sessionID, TokenTypeRefresh, ttl)
}

func (g *Generator) generate(accountID int64, display Display, sessionID string, typ TokenType, ttl time.Duration) (*IssuedToken, error) {
	if g.keys.signKey == nil {
		return nil, fmt.Errorf("jwt generator has no signing key")
	}
	if accountID <= 0 || sessionID == "" {
		return nil, fmt.Errorf("jwt generator: account id and session id are required")
	}

	now := g.now()
	jti := ulid.Make().String()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		SessionID: sessionID,
		AccountID: accountID,
		Username:  display.Username,
		Role:      display.Role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   subject(accountID),
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(g.keys.method, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.keys.signKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &IssuedToken{Token: signed, ID: jti, ExpiresAt: expiresAt}, nil
}
