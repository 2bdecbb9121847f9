// internal/pkg/jwt/verifier.go
package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	xerrors "authsession-service/internal/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

type Verifier struct {
	keys     keySet
	issuer   string
	audience string
	now      func() time.Time
}

func newVerifier(keys keySet, issuer, audience string, now func() time.Time) *Verifier {
	return &Verifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		now:      now,
	}
}

// Verify validates a JWT token and returns the claims.
// Errors wrap one of xerrors.ErrTokenEmpty, ErrTokenExpired, ErrTokenMalformed or ErrTokenBadSignature.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, xerrors.ErrTokenEmpty
	}
	if v.keys.verifyKey == nil {
		return nil, fmt.Errorf("jwt verifier has no verification key")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.keys.verifyKey, nil
	},
		jwt.WithValidMethods([]string{v.keys.method.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", xerrors.ErrTokenMalformed)
	}
	if claims.SessionID == "" || claims.AccountID <= 0 {
		return nil, fmt.Errorf("%w: missing session or account", xerrors.ErrTokenMalformed)
	}

	return claims, nil
}

// VerifyAccessToken verifies that the token is for access purposes
func (v *Verifier) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.IsAccess() {
		return nil, fmt.Errorf("%w: token is not an access token", xerrors.ErrTokenMalformed)
	}
	return claims, nil
}

// VerifyRefreshToken verifies that the token is for refresh purposes
func (v *Verifier) VerifyRefreshToken(tokenString string) (*Claims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.IsRefresh() {
		return nil, fmt.Errorf("%w: token is not a refresh token", xerrors.ErrTokenMalformed)
	}
	return claims, nil
}

// RemainingTTL returns how long a valid token has left, or 0 for any invalid token.
func (v *Verifier) RemainingTTL(tokenString string) time.Duration {
	claims, err := v.Verify(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	d := claims.ExpiresAt.Time.Sub(v.now())
	if d < 0 {
		return 0
	}
	return d
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", xerrors.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", xerrors.ErrTokenBadSignature, err)
	default:
		// malformed input, wrong issuer or audience, not-yet-valid
		return fmt.Errorf("%w: %w", xerrors.ErrTokenMalformed, err)
	}
}
