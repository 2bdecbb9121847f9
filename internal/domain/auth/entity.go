// internal/domain/auth/entity.go
package auth

import (
	"context"
	"database/sql"
	"time"
)

// Account is the identity that owns sessions.
type Account struct {
	ID           int64          `json:"id" db:"id"`
	Username     string         `json:"username" db:"username"`
	Email        sql.NullString `json:"email" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	Role         string         `json:"role" db:"role"`
	Status       string         `json:"status" db:"status"` // active, disabled
	LastLogin    sql.NullTime   `json:"last_login" db:"last_login"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

const (
	AccountStatusActive   = "active"
	AccountStatusDisabled = "disabled"
)

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// AccountRepository resolves login identifiers to accounts.
type AccountRepository interface {
	// FindByIdentifier matches username or email. Returns xerrors.ErrNotFound when absent.
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

// PasswordVerifier compares a raw password with a stored hash.
type PasswordVerifier interface {
	Verify(rawPassword, storedHash string) bool
}
