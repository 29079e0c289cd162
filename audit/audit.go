// Package audit records administrative actions so each one can be attributed afterwards.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jrsteele09/fittrack-server/internal/utils"
)

// Action labels an administrative operation
type Action string

const (
	ActionArchiveUser Action = "archive_user"
	ActionRestoreUser Action = "restore_user"
	ActionDeleteUser  Action = "delete_user"
	ActionChangeRole  Action = "change_role"
)

// Entry is one immutable audit record. TargetID is nil when the action had no target or the
// target was later deleted, in which case TargetDeleted is set.
type Entry struct {
	ID            string         `json:"id"`
	ActorID       string         `json:"actor_id"`
	TargetID      *string        `json:"target_id,omitempty"`
	TargetDeleted bool           `json:"target_deleted"`
	Action        Action         `json:"action"`
	Detail        map[string]any `json:"detail,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Repo is append-only apart from TombstoneTarget, which only ever detaches a target.
type Repo interface {
	Append(ctx context.Context, entry *Entry) error

	// ListByTarget returns entries for a target in the order they were appended
	ListByTarget(ctx context.Context, targetID string) ([]*Entry, error)

	// ListRecent returns up to limit entries, newest first
	ListRecent(ctx context.Context, limit int) ([]*Entry, error)

	// TombstoneTarget nulls the target on every entry for targetID and flags it deleted
	TombstoneTarget(ctx context.Context, targetID string) (int64, error)
}

type Logger struct {
	now func() time.Time
}

type LoggerOption func(*Logger)

func WithNowTime(now func() time.Time) LoggerOption {
	return func(l *Logger) {
		l.now = now
	}
}

func NewLogger(options ...LoggerOption) *Logger {
	l := &Logger{now: time.Now}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Append writes an entry through repo. Pass the transaction-bound repo so the entry commits or
// rolls back with the action it records. A target that does not exist is not an error.
func (l *Logger) Append(ctx context.Context, repo Repo, actorID string, action Action, targetID *string, detail map[string]any) (*Entry, error) {
	entry := &Entry{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Action:    action,
		Detail:    detail,
		CreatedAt: l.now().UTC(),
	}
	entry.TargetID = utils.Copy(targetID)

	if err := repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("[Logger.Append] repo.Append %s: %w", action, err)
	}
	return entry, nil
}

// Clone returns a deep copy of the entry
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.TargetID = utils.Copy(e.TargetID)
	if e.Detail != nil {
		c.Detail = make(map[string]any, len(e.Detail))
		for k, v := range e.Detail {
			c.Detail[k] = v
		}
	}
	return &c
}
