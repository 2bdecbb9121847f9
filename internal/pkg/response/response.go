// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"
	"strconv"

	xerrors "authsession-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response and aborts the chain.
func Error(c *gin.Context, status int, code, message string, data ...interface{}) {
	c.Abort()

	resp := Response{
		Success: false,
		Message: message,
		Code:    code,
	}
	if len(data) > 0 {
		resp.Data = data[0]
	}

	c.JSON(status, resp)
}

// FromError maps a domain error to its status, code and public message.
// Internal error text is never written to the client.
func FromError(c *gin.Context, err error) {
	var locked *xerrors.LockedError
	if errors.As(err, &locked) {
		secs := int64(locked.RetryAfter.Seconds())
		c.Header("Retry-After", strconv.FormatInt(secs, 10))
		Error(c, http.StatusTooManyRequests, xerrors.Code(err), xerrors.PublicMessage(err),
			gin.H{"retry_after": secs})
		return
	}

	var creds *xerrors.CredentialsError
	if errors.As(err, &creds) {
		Error(c, http.StatusUnauthorized, xerrors.Code(err), xerrors.PublicMessage(err),
			gin.H{"remaining_attempts": creds.RemainingAttempts})
		return
	}

	_ = c.Error(err)
	Error(c, xerrors.HTTPStatus(err), xerrors.Code(err), xerrors.PublicMessage(err))
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "REQ_001", message)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, "AUTH_002", message)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, "AUTHZ_001", message)
}
