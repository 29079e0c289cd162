package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/store"
	"github.com/jrsteele09/fittrack-server/users"
)

const generatedPasswordAttempts = 10

// InitialiseSystem makes sure the administrator account exists.
// A generated password is printed once and never stored in plain text.
func (s *Server) InitialiseSystem(ctx context.Context) error {
	log.Info().Msg("Bootstrap: checking administrator account")

	email := users.NormalizeEmail(s.config.GetAdminEmail())
	generatedPassword, err := s.bootstrapAdmin(ctx, email)
	if err != nil {
		return fmt.Errorf("[Server.InitialiseSystem] failed to bootstrap admin: %w", err)
	}

	if generatedPassword != "" {
		fmt.Fprintf(s.bootstrapOut, "\nAdministrator credentials:\n")
		fmt.Fprintf(s.bootstrapOut, "   Email:       %s\n", email)
		fmt.Fprintf(s.bootstrapOut, "   Admin name:  %s\n", s.config.GetAdminUsername())
		fmt.Fprintf(s.bootstrapOut, "   Password:    %s\n", generatedPassword)
		fmt.Fprintf(s.bootstrapOut, "   SAVE THIS PASSWORD - it will not be displayed again!\n\n")
	}
	return nil
}

// bootstrapAdmin creates the administrator if no account holds the configured email. The password
// comes from ADMIN_PASSWORD when set, otherwise one is generated and returned.
func (s *Server) bootstrapAdmin(ctx context.Context, email string) (generatedPassword string, err error) {
	existing, err := s.store.Repos().Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != users.RoleAdmin {
			log.Warn().Str("email", email).Msg("Bootstrap: admin email belongs to a non-admin account")
		} else {
			log.Info().Str("email", email).Msg("Bootstrap: administrator already exists")
		}
		return "", nil
	case !apperrors.Is(err, apperrors.ErrAccountNotFound):
		return "", fmt.Errorf("failed to check for existing admin: %w", err)
	}

	password := s.config.GetAdminPassword()
	if password != "" {
		if err := users.ValidatePasswordStrength(password); err != nil {
			return "", fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
		}
	} else {
		if password, err = generatePassword(); err != nil {
			return "", err
		}
		generatedPassword = password
	}

	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &users.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     s.config.GetAdminUsername(),
		PasswordHash: passwordHash,
		Role:         users.RoleAdmin,
		DateJoined:   s.auth.Now().UTC(),
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos store.Repos) error {
		return repos.Users.Save(ctx, admin)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create admin: %w", err)
	}

	log.Info().Str("email", admin.Email).Str("accountID", admin.ID).Msg("Bootstrap: created administrator")
	return generatedPassword, nil
}

// generatePassword draws random passwords until one meets the strength rule
func generatePassword() (string, error) {
	passwordBytes := make([]byte, 16)
	for i := 0; i < generatedPasswordAttempts; i++ {
		if _, err := rand.Read(passwordBytes); err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		password := base64.RawURLEncoding.EncodeToString(passwordBytes)
		if users.ValidatePasswordStrength(password) == nil {
			return password, nil
		}
	}
	return "", errors.New("failed to generate a password meeting the strength rule")
}
