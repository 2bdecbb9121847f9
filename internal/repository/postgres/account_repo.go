// internal/repository/postgres/account_repo.go
package postgres

import (
	"context"
	"strings"
	"time"

	"authsession-service/internal/domain/auth"
	xerrors "authsession-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, username, email, password_hash, role, status,
	last_login, created_at, updated_at`

type AccountRepository struct {
	db dbtx
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: pool}
}

// FindByIdentifier matches the username or the email, case-insensitively.
func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*auth.Account, error) {
	defer observe("account_find", time.Now())

	query := `SELECT ` + accountColumns + `
		FROM auth_accounts
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
		LIMIT 1`

	return r.findOne(ctx, query, strings.TrimSpace(identifier))
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	defer observe("account_find", time.Now())

	query := `SELECT ` + accountColumns + ` FROM auth_accounts WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	defer observe("account_last_login", time.Now())

	query := `UPDATE auth_accounts SET last_login = $1, updated_at = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, at, id); err != nil {
		return storeErr("update last login", err)
	}
	return nil
}

// AdminExists reports whether any admin or super admin account is present.
func (r *AccountRepository) AdminExists(ctx context.Context) (bool, error) {
	defer observe("account_admin_exists", time.Now())

	query := `SELECT EXISTS (SELECT 1 FROM auth_accounts WHERE role IN ($1, $2))`

	var exists bool
	if err := r.db.QueryRow(ctx, query, auth.RoleAdmin, auth.RoleSuperAdmin).Scan(&exists); err != nil {
		return false, storeErr("check admin", err)
	}
	return exists, nil
}

func (r *AccountRepository) Create(ctx context.Context, a *auth.Account) error {
	defer observe("account_create", time.Now())

	query := `INSERT INTO auth_accounts (username, email, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.Username, a.Email, a.PasswordHash, a.Role, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return storeErr("create account", err)
	}
	return nil
}

func (r *AccountRepository) findOne(ctx context.Context, query string, arg any) (*auth.Account, error) {
	var a auth.Account
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.Status,
		&a.LastLogin, &a.CreatedAt, &a.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("find account", err)
	}
	return &a, nil
}
