package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/users"
)

const (
	selectUser = `SELECT id, email, username, password_hash, role, is_archived, failed_attempts, locked_until, date_joined, last_login FROM users`

	upsertUser = `INSERT INTO users (id, email, username, password_hash, role, is_archived, failed_attempts, locked_until, date_joined, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			username = excluded.username,
			password_hash = excluded.password_hash,
			role = excluded.role,
			is_archived = excluded.is_archived,
			failed_attempts = excluded.failed_attempts,
			locked_until = excluded.locked_until,
			last_login = excluded.last_login`

	defaultListLimit = 1000
)

type userRepo struct {
	db   DBTX
	d    dialect
	inTx bool
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	query := r.d.forUpdate(selectUser+` WHERE email = $1`, r.inTx)
	return r.getOne(ctx, query, users.NormalizeEmail(email))
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	query := r.d.forUpdate(selectUser+` WHERE id = $1`, r.inTx)
	return r.getOne(ctx, query, id)
}

func (r *userRepo) getOne(ctx context.Context, query string, arg string) (*users.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, r.d.bind(query), arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("[sqlstore.users] db error: %w", err)
	}
	return u, nil
}

func (r *userRepo) Save(ctx context.Context, u *users.User) error {
	if u == nil || u.ID == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[sqlstore.users.Save] user id required")
	}
	_, err := r.db.ExecContext(ctx, r.d.bind(upsertUser),
		u.ID,
		users.NormalizeEmail(u.Email),
		u.Username,
		u.PasswordHash,
		string(u.Role),
		u.IsArchived,
		u.FailedAttempts,
		nullTime(u.LockedUntil),
		u.DateJoined.UTC(),
		nullTime(u.LastLogin),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrapf(apperrors.ErrConflict, "[sqlstore.users.Save] email %s", u.Email)
		}
		return fmt.Errorf("[sqlstore.users.Save] db error: %w", err)
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.d.bind(`DELETE FROM users WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("[sqlstore.users.Delete] db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("[sqlstore.users.Delete] rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

func (r *userRepo) List(ctx context.Context, offset, limit int) ([]*users.User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, r.d.bind(selectUser+` ORDER BY date_joined, id LIMIT $1 OFFSET $2`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("[sqlstore.users.List] db error: %w", err)
	}
	defer rows.Close()

	list := []*users.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("[sqlstore.users.List] scan: %w", err)
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[sqlstore.users.List] rows: %w", err)
	}
	return list, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*users.User, error) {
	var (
		u           users.User
		role        string
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&role,
		&u.IsArchived,
		&u.FailedAttempts,
		&lockedUntil,
		&u.DateJoined,
		&lastLogin,
	)
	if err != nil {
		return nil, err
	}
	u.Role = users.RoleType(role)
	u.DateJoined = u.DateJoined.UTC()
	u.LockedUntil = timePtr(lockedUntil)
	u.LastLogin = timePtr(lastLogin)
	return &u, nil
}
