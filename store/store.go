// Package store defines the unit of work the trust layer uses to keep account, session and
// audit writes consistent with each other.
package store

import (
	"context"

	"github.com/jrsteele09/fittrack-server/audit"
	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/jrsteele09/fittrack-server/users"
)

// Repos groups the repositories bound to one handle, either the pool or a transaction
type Repos struct {
	Users    users.Repo
	Sessions sessions.Repo
	Audit    audit.Repo
}

// UnitOfWork runs fn with transaction-bound repositories. Writes made through them commit
// together when fn returns nil and are discarded otherwise. fn must not call WithinTx again.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error

	// Repos returns repositories outside any transaction
	Repos() Repos
}

// Store is a UnitOfWork that owns resources
type Store interface {
	UnitOfWork
	Ping(ctx context.Context) error
	Close() error
}
