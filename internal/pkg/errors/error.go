package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common reusable application errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthorized    = errors.New("unauthorized access")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal server error")
)

// Session lifecycle errors. All three are recoverable by signing in again.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionIdleTimeout = errors.New("session idle timeout")
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginLocked        = errors.New("too many failed login attempts")
)

// Token errors
var (
	ErrTokenEmpty        = errors.New("token is empty")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenBlacklisted  = errors.New("token has been revoked")
)

// ErrStoreUnavailable marks failures of the durable session store.
var ErrStoreUnavailable = errors.New("session store unavailable")

// LockedError is returned by the login flow while an identifier is locked out.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s: retry after %ds", ErrLoginLocked.Error(), int64(e.RetryAfter.Seconds()))
}

func (e *LockedError) Unwrap() error {
	return ErrLoginLocked
}

// CredentialsError is a failed login that has not reached the lockout threshold.
type CredentialsError struct {
	RemainingAttempts int64
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrInvalidCredentials.Error(), e.RemainingAttempts)
}

func (e *CredentialsError) Unwrap() error {
	return ErrInvalidCredentials
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}

type classification struct {
	target  error
	code    string
	status  int
	message string
}

// Order matters: the first matching sentinel wins.
var classifications = []classification{
	{ErrSessionExpired, "AUTH_101", http.StatusUnauthorized, "please sign in again"},
	{ErrSessionIdleTimeout, "AUTH_102", http.StatusUnauthorized, "please sign in again"},
	{ErrSessionNotFound, "AUTH_103", http.StatusUnauthorized, "please sign in again"},
	{ErrTokenExpired, "AUTH_201", http.StatusUnauthorized, "invalid session"},
	{ErrTokenMalformed, "AUTH_202", http.StatusUnauthorized, "invalid session"},
	{ErrTokenBadSignature, "AUTH_202", http.StatusUnauthorized, "invalid session"},
	{ErrTokenEmpty, "AUTH_202", http.StatusUnauthorized, "invalid session"},
	{ErrTokenBlacklisted, "AUTH_203", http.StatusUnauthorized, "invalid session"},
	{ErrLoginLocked, "AUTH_301", http.StatusTooManyRequests, "account temporarily locked"},
	{ErrInvalidCredentials, "AUTH_001", http.StatusUnauthorized, "invalid username or password"},
	{ErrUnauthorized, "AUTH_002", http.StatusUnauthorized, "unauthorized"},
	{ErrForbidden, "AUTHZ_001", http.StatusForbidden, "access denied"},
	{ErrInvalidArgument, "REQ_001", http.StatusBadRequest, "invalid request"},
	{ErrNotFound, "REQ_404", http.StatusNotFound, "resource not found"},
	{ErrStoreUnavailable, "SYS_001", http.StatusServiceUnavailable, "service temporarily unavailable"},
}

func classify(err error) (classification, bool) {
	for _, c := range classifications {
		if errors.Is(err, c.target) {
			return c, true
		}
	}
	return classification{}, false
}

// Code returns the stable error code for err, or SYS_999 when unknown.
func Code(err error) string {
	if c, ok := classify(err); ok {
		return c.code
	}
	return "SYS_999"
}

// HTTPStatus maps err to the status code the transport layer should use.
func HTTPStatus(err error) int {
	if c, ok := classify(err); ok {
		return c.status
	}
	return http.StatusInternalServerError
}

// PublicMessage is the user facing text for err. Internal details are never exposed.
func PublicMessage(err error) string {
	if c, ok := classify(err); ok {
		return c.message
	}
	return "internal server error"
}

// IsReauthRequired reports whether the caller must sign in again.
func IsReauthRequired(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrSessionIdleTimeout)
}
