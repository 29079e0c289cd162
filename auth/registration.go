package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/store"
	"github.com/jrsteele09/fittrack-server/users"
)

// Register creates an ordinary member account. The administrator's email and username are
// reserved, and an email can only belong to one account.
func (s *Service) Register(ctx context.Context, email, username, password string) (*users.User, error) {
	email = users.NormalizeEmail(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Service.Register] email and username are required")
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Service.Register] %s", err.Error())
	}
	if s.isReserved(email, username) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Service.Register] %q is reserved", email)
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Service.Register] users.HashPassword")
	}
	account := &users.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         users.RoleUser,
		DateJoined:   s.nowTime().UTC(),
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repos) error {
		_, err := repos.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			return apperrors.Wrapf(apperrors.ErrConflict, "[Service.Register] email already registered")
		case !apperrors.Is(err, apperrors.ErrAccountNotFound):
			return apperrors.Wrapf(err, "[Service.Register] users.GetByEmail")
		}
		return repos.Users.Save(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("accountID", account.ID).Msg("member registered")
	return account.Clone(), nil
}

func (s *Service) isReserved(email, username string) bool {
	if s.settings.AdminEmail != "" && email == users.NormalizeEmail(s.settings.AdminEmail) {
		return true
	}
	return strings.EqualFold(username, s.settings.AdminUsername)
}
