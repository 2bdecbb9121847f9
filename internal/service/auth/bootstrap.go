// internal/service/auth/bootstrap.go
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"authsession-service/internal/domain/auth"
	"authsession-service/internal/pkg/logger"

	"go.uber.org/zap"
)

// AdminProvisioner is implemented by the Postgres account repository.
type AdminProvisioner interface {
	AdminExists(ctx context.Context) (bool, error)
	Create(ctx context.Context, a *auth.Account) error
}

type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// EnsureAdminAccount creates the first super admin account on startup when
// no admin exists yet. It is a no-op when the seed password is not configured.
func EnsureAdminAccount(ctx context.Context, repo AdminProvisioner, hasher *BcryptVerifier, seed AdminSeed, log *zap.Logger) error {
	log = logger.OrNop(log)

	if seed.Password == "" {
		log.Info("admin seed password not set, skipping admin bootstrap")
		return nil
	}
	if strings.TrimSpace(seed.Username) == "" {
		return errors.New("admin username must be provided")
	}
	if len(seed.Password) < 8 {
		return errors.New("admin password must be at least 8 characters")
	}

	exists, err := repo.AdminExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		log.Info("admin account already exists, skipping creation")
		return nil
	}

	hash, err := hasher.Hash(seed.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account := &auth.Account{
		Username:     strings.TrimSpace(seed.Username),
		Email:        sql.NullString{String: seed.Email, Valid: seed.Email != ""},
		PasswordHash: hash,
		Role:         auth.RoleSuperAdmin,
		Status:       auth.AccountStatusActive,
	}
	if err := repo.Create(ctx, account); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Info("super admin account created",
		zap.Int64("account_id", account.ID),
		zap.String("username", account.Username),
	)
	return nil
}
