// internal/repository/postgres/session_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "authsession-service/internal/domain/session"

	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, account_id, device_info, created_at, last_activity_at,
	expires_at, absolute_timeout, idle_timeout, remember_me`

// SessionRepository is the durable system of record for sessions.
type SessionRepository struct {
	db dbtx
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: pool}
}

// Save upserts s. Only the mutable columns change on conflict.
func (r *SessionRepository) Save(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	defer observe("save", time.Now())

	device, err := json.Marshal(s.Device)
	if err != nil {
		return nil, fmt.Errorf("encode device info: %w", err)
	}

	query := `
		INSERT INTO auth_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			last_activity_at = EXCLUDED.last_activity_at,
			device_info      = EXCLUDED.device_info,
			remember_me      = EXCLUDED.remember_me
		RETURNING ` + sessionColumns

	row := r.db.QueryRow(ctx, query,
		s.ID, s.AccountID, device, s.CreatedAt, s.LastActivityAt,
		s.ExpiresAt, s.AbsoluteTimeout, s.IdleTimeout, s.RememberMe,
	)

	saved, err := scanSession(row)
	if err != nil {
		return nil, storeErr("save session", err)
	}
	return saved, nil
}

// FindByID returns nil, nil when the session does not exist.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	defer observe("find_by_id", time.Now())

	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find session", err)
	}
	return s, nil
}

func (r *SessionRepository) FindAllByAccount(ctx context.Context, accountID int64) ([]*domain.Session, error) {
	defer observe("find_by_account", time.Now())

	query := `SELECT ` + sessionColumns + `
		FROM auth_sessions
		WHERE account_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, storeErr("scan session", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list sessions", err)
	}
	return sessions, nil
}

// DeleteByID is a no-op for unknown ids.
func (r *SessionRepository) DeleteByID(ctx context.Context, id string) error {
	defer observe("delete", time.Now())

	if _, err := r.db.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id); err != nil {
		return storeErr("delete session", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer observe("delete_expired", time.Now())

	tag, err := r.db.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, storeErr("delete expired sessions", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepository) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	defer observe("count", time.Now())

	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM auth_sessions WHERE account_id = $1`, accountID).Scan(&n)
	if err != nil {
		return 0, storeErr("count sessions", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s      domain.Session
		device []byte
	)
	err := row.Scan(
		&s.ID, &s.AccountID, &device, &s.CreatedAt, &s.LastActivityAt,
		&s.ExpiresAt, &s.AbsoluteTimeout, &s.IdleTimeout, &s.RememberMe,
	)
	if err != nil {
		return nil, err
	}
	if len(device) > 0 {
		if err := json.Unmarshal(device, &s.Device); err != nil {
			return nil, fmt.Errorf("decode device info: %w", err)
		}
	}
	return &s, nil
}
