package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/jrsteele09/fittrack-server/users"
)

const upsertSession = `INSERT INTO sessions (id, account_id, role, csrf_token, long_lived, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			account_id = excluded.account_id,
			role = excluded.role,
			csrf_token = excluded.csrf_token,
			long_lived = excluded.long_lived,
			expires_at = excluded.expires_at`

type sessionRepo struct {
	db DBTX
	d  dialect
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*sessions.Session, error) {
	query := `SELECT id, account_id, role, csrf_token, long_lived, created_at, expires_at FROM sessions WHERE id = $1`

	var (
		s    sessions.Session
		role string
	)
	err := r.db.QueryRowContext(ctx, r.d.bind(query), id).
		Scan(&s.ID, &s.AccountID, &role, &s.CSRFToken, &s.LongLived, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("[sqlstore.sessions.Get] db error: %w", err)
	}
	s.Role = users.RoleType(role)
	s.CreatedAt = s.CreatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return &s, nil
}

func (r *sessionRepo) Upsert(ctx context.Context, s *sessions.Session) error {
	if s == nil || s.ID == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[sqlstore.sessions.Upsert] session id required")
	}
	_, err := r.db.ExecContext(ctx, r.d.bind(upsertSession),
		s.ID, s.AccountID, string(s.Role), s.CSRFToken, s.LongLived, s.CreatedAt.UTC(), s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("[sqlstore.sessions.Upsert] db error: %w", err)
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.d.bind(`DELETE FROM sessions WHERE id = $1`), id); err != nil {
		return fmt.Errorf("[sqlstore.sessions.Delete] db error: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	if _, err := r.db.ExecContext(ctx, r.d.bind(`DELETE FROM sessions WHERE account_id = $1`), accountID); err != nil {
		return fmt.Errorf("[sqlstore.sessions.DeleteByAccount] db error: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.d.bind(`DELETE FROM sessions WHERE expires_at <= $1`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("[sqlstore.sessions.DeleteExpired] db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("[sqlstore.sessions.DeleteExpired] rows affected: %w", err)
	}
	return n, nil
}
