// Package admin holds the privileged account operations. Each one runs in a single unit of
// work together with the audit entry that records it.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fittrack-server/audit"
	"github.com/jrsteele09/fittrack-server/auth"
	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/internal/metrics"
	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/jrsteele09/fittrack-server/store"
	"github.com/jrsteele09/fittrack-server/users"
)

const recentAuditLimit = 50

type Service struct {
	uow  store.UnitOfWork
	auth *auth.Service
}

func NewService(uow store.UnitOfWork, authService *auth.Service) (*Service, error) {
	if uow == nil {
		return nil, errors.New("[admin.NewService] unit of work is required")
	}
	if authService == nil {
		return nil, errors.New("[admin.NewService] auth service is required")
	}
	return &Service{uow: uow, auth: authService}, nil
}

// Overview is the admin dashboard data
type Overview struct {
	Active   []*users.User  `json:"active_users"`
	Archived []*users.User  `json:"archived_users"`
	Recent   []*audit.Entry `json:"recent_actions"`
}

func (s *Service) Overview(ctx context.Context, actor *sessions.Session) (*Overview, error) {
	if err := s.auth.RequireRole(actor, users.RoleAdmin); err != nil {
		return nil, err
	}
	repos := s.uow.Repos()

	all, err := repos.Users.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("[admin.Overview] users.List: %w", err)
	}
	o := &Overview{Active: []*users.User{}, Archived: []*users.User{}}
	for _, u := range all {
		if u.Role != users.RoleUser {
			continue
		}
		if u.IsArchived {
			o.Archived = append(o.Archived, u)
		} else {
			o.Active = append(o.Active, u)
		}
	}

	o.Recent, err = repos.Audit.ListRecent(ctx, recentAuditLimit)
	if err != nil {
		return nil, fmt.Errorf("[admin.Overview] audit.ListRecent: %w", err)
	}
	return o, nil
}

// ArchiveUser disables a member. Their live sessions are invalidated by the guard on next use.
func (s *Service) ArchiveUser(ctx context.Context, actor *sessions.Session, targetID string) (*users.User, error) {
	return s.setArchived(ctx, actor, targetID, true)
}

func (s *Service) RestoreUser(ctx context.Context, actor *sessions.Session, targetID string) (*users.User, error) {
	return s.setArchived(ctx, actor, targetID, false)
}

func (s *Service) setArchived(ctx context.Context, actor *sessions.Session, targetID string, archived bool) (*users.User, error) {
	action := audit.ActionArchiveUser
	if !archived {
		action = audit.ActionRestoreUser
	}

	var target *users.User
	err := s.privileged(ctx, actor, targetID, action, func(ctx context.Context, repos store.Repos) (map[string]any, error) {
		var err error
		target, err = repos.Users.GetByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		detail := map[string]any{"email": target.Email, "was_archived": target.IsArchived}
		target.IsArchived = archived
		return detail, repos.Users.Save(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// DeleteUser erases an account: its sessions go, its audit history is kept with the target
// reference tombstoned, and the delete itself is recorded.
func (s *Service) DeleteUser(ctx context.Context, actor *sessions.Session, targetID string) error {
	return s.privileged(ctx, actor, targetID, audit.ActionDeleteUser, func(ctx context.Context, repos store.Repos) (map[string]any, error) {
		target, err := repos.Users.GetByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if err := repos.Sessions.DeleteByAccount(ctx, targetID); err != nil {
			return nil, fmt.Errorf("sessions.DeleteByAccount: %w", err)
		}
		if err := repos.Users.Delete(ctx, targetID); err != nil {
			return nil, err
		}
		return map[string]any{"email": target.Email, "username": target.Username, "role": string(target.Role)}, nil
	}, func(ctx context.Context, repos store.Repos) error {
		if _, err := repos.Audit.TombstoneTarget(ctx, targetID); err != nil {
			return fmt.Errorf("audit.TombstoneTarget: %w", err)
		}
		return nil
	})
}

// ChangeRole moves an account between user and admin. The affected account's sessions are
// invalidated by the guard on next use.
func (s *Service) ChangeRole(ctx context.Context, actor *sessions.Session, targetID string, role users.RoleType) (*users.User, error) {
	if !role.Valid() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[admin.ChangeRole] unknown role %q", role)
	}

	var target *users.User
	err := s.privileged(ctx, actor, targetID, audit.ActionChangeRole, func(ctx context.Context, repos store.Repos) (map[string]any, error) {
		var err error
		target, err = repos.Users.GetByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		detail := map[string]any{"from": string(target.Role), "to": string(role)}
		target.Role = role
		return detail, repos.Users.Save(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

type mutation func(ctx context.Context, repos store.Repos) (detail map[string]any, err error)

// privileged runs apply and the audit append in one transaction, then any follow-up steps that
// must see the appended entry. A failure anywhere rolls all of it back.
func (s *Service) privileged(ctx context.Context, actor *sessions.Session, targetID string, action audit.Action, apply mutation, after ...func(ctx context.Context, repos store.Repos) error) error {
	if err := s.auth.RequireRole(actor, users.RoleAdmin); err != nil {
		return err
	}
	if targetID == actor.AccountID {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[admin.%s] admins cannot target their own account", action)
	}

	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repos) error {
		detail, err := apply(ctx, repos)
		if err != nil {
			return err
		}
		target := targetID
		if _, err := s.auth.LogAdminAction(ctx, repos, actor, action, &target, detail); err != nil {
			return err
		}
		for _, step := range after {
			if err := step(ctx, repos); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := auth.AsError(err); ok || apperrors.Is(err, apperrors.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("[admin.%s] %w", action, err)
	}

	metrics.AuditEntries.WithLabelValues(string(action)).Inc()
	log.Info().Str("actorID", actor.AccountID).Str("targetID", targetID).Str("action", string(action)).Msg("admin action applied")
	return nil
}
