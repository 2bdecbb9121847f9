// internal/middleware/helpers.go
package middleware

import (
	"authsession-service/internal/domain/auth"

	"github.com/dmitrymomot/foundation/pkg/clientip"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// ClientIP honours the usual proxy headers before falling back to RemoteAddr.
func ClientIP(c *gin.Context) string {
	if ip := clientip.GetIP(c.Request); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}

// MustGetPrincipal gets the principal from context or panics
func MustGetPrincipal(c *gin.Context) *auth.Principal {
	p, ok := GetPrincipal(c)
	if !ok {
		panic("principal not found in context")
	}
	return p
}

func GetAccountID(c *gin.Context) (int64, bool) {
	p, ok := GetPrincipal(c)
	if !ok {
		return 0, false
	}
	return p.AccountID, true
}
