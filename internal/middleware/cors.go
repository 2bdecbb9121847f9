// internal/middleware/cors.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// NewCORS builds the CORS handler for the configured origins. A single "*"
// allows any origin, in which case credentials are not advertised.
func NewCORS(allowedOrigins []string) *cors.Cors {
	origins := make([]string, 0, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		o = strings.TrimRight(o, "/")
		if o == "*" {
			allowAll = true
		}
		origins = append(origins, o)
	}

	return cors.New(cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Authorization", "Content-Type"},
		ExposedHeaders:       []string{HeaderSessionWarning, HeaderSessionRemaining, "Retry-After"},
		AllowCredentials:     !allowAll,
		OptionsSuccessStatus: http.StatusNoContent,
	})
}
