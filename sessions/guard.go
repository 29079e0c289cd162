package sessions

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/users"
)

// InvalidationReason explains why a populated session was cleared
type InvalidationReason string

const (
	ReasonDeleted     InvalidationReason = "deleted"
	ReasonRoleChanged InvalidationReason = "role_changed"
	ReasonArchived    InvalidationReason = "archived"
	ReasonExpired     InvalidationReason = "expired"
)

// Result of a guard check. PreviousRole is the role the session held before it was
// cleared, so the caller can pick the right login entry point.
type Result struct {
	Valid        bool
	Reason       InvalidationReason
	PreviousRole users.RoleType
}

func valid() Result {
	return Result{Valid: true}
}

func invalidated(reason InvalidationReason, role users.RoleType) Result {
	return Result{Reason: reason, PreviousRole: role}
}

// Guard re-checks a session's claimed identity against the credential store
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// Check validates s against the account's current state. It always reads through accounts,
// never a cached copy. On invalidation s is cleared in place; persisting it is up to the caller.
func (g *Guard) Check(ctx context.Context, accounts users.Repo, s *Session, now time.Time) (Result, error) {
	if !s.IsAuthenticated() {
		return valid(), nil
	}
	role := s.Role

	if s.Expired(now) {
		s.Clear()
		return invalidated(ReasonExpired, role), nil
	}

	account, err := accounts.GetByID(ctx, s.AccountID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrAccountNotFound) {
			s.Clear()
			return invalidated(ReasonDeleted, role), nil
		}
		return Result{}, fmt.Errorf("[Guard.Check] accounts.GetByID: %w", err)
	}

	if account.Role != s.Role {
		s.Clear()
		return invalidated(ReasonRoleChanged, role), nil
	}

	if s.Role == users.RoleUser && account.IsArchived {
		s.Clear()
		return invalidated(ReasonArchived, role), nil
	}

	return valid(), nil
}
