package sessions

import (
	"context"
	"time"
)

// Repo persists sessions. Get returns errors.ErrSessionNotFound for unknown identifiers.
type Repo interface {
	Get(ctx context.Context, id string) (*Session, error)
	Upsert(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error

	// DeleteByAccount removes every session bound to an account
	DeleteByAccount(ctx context.Context, accountID string) error

	// DeleteExpired removes sessions whose expiry is at or before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
