// internal/pkg/jwt/claims.go
package jwt

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Display holds optional, non-authoritative fields copied into a token.
type Display struct {
	Username string
	Role     string
}

// Claims represents the JWT claims. The subject is the account id.
type Claims struct {
	SessionID string    `json:"sid"`
	AccountID int64     `json:"account_id"`
	Username  string    `json:"username,omitempty"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAccess() bool {
	return c.TokenType == TokenTypeAccess
}

func (c *Claims) IsRefresh() bool {
	return c.TokenType == TokenTypeRefresh
}

func subject(accountID int64) string {
	return strconv.FormatInt(accountID, 10)
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
