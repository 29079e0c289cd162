package users_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/fittrack-server/users"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := users.HashPassword("StrongPass123")
	require.NoError(t, err)
	require.NotEqual(t, "StrongPass123", hash)

	require.True(t, users.CheckPasswordHash("StrongPass123", hash))
	require.False(t, users.CheckPasswordHash("StrongPass124", hash))
	require.False(t, users.CheckPasswordHash("StrongPass123", "not-a-hash"))
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "StrongPass123", ""},
		{"too short", "Ab1", "at least 8 characters"},
		{"no upper", "strongpass123", "uppercase"},
		{"no lower", "STRONGPASS123", "lowercase"},
		{"no number", "StrongPassword", "number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "student@example.com", users.NormalizeEmail("  Student@Example.COM "))
}

func TestClone_DoesNotAlias(t *testing.T) {
	locked := time.Now()
	u := &users.User{ID: "u-1", LockedUntil: &locked, FailedAttempts: 2}

	c := u.Clone()
	c.FailedAttempts = 0
	*c.LockedUntil = locked.Add(time.Hour)

	require.Equal(t, 2, u.FailedAttempts)
	require.True(t, u.LockedUntil.Equal(locked))
}

func TestRoleValid(t *testing.T) {
	require.True(t, users.RoleUser.Valid())
	require.True(t, users.RoleAdmin.Valid())
	require.False(t, users.RoleType("super_admin").Valid())
}
