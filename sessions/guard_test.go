package sessions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/jrsteele09/fittrack-server/store/memstore"
	"github.com/jrsteele09/fittrack-server/users"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	store *memstore.Store
	guard *sessions.Guard
	now   time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	s := memstore.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, u := range []*users.User{
		{ID: "member", Email: "member@example.com", Role: users.RoleUser, DateJoined: now},
		{ID: "admin", Email: "admin@example.com", Role: users.RoleAdmin, DateJoined: now},
	} {
		require.NoError(t, s.Repos().Users.Save(context.Background(), u))
	}
	return &testFixture{store: s, guard: sessions.NewGuard(), now: now}
}

func (f *testFixture) session(accountID string, role users.RoleType) *sessions.Session {
	return &sessions.Session{
		ID:        "s-" + accountID,
		AccountID: accountID,
		Role:      role,
		CSRFToken: "token",
		LongLived: true,
		CreatedAt: f.now,
		ExpiresAt: f.now.Add(time.Hour),
	}
}

func (f *testFixture) mutate(t *testing.T, id string, fn func(u *users.User)) {
	t.Helper()
	ctx := context.Background()
	u, err := f.store.Repos().Users.GetByID(ctx, id)
	require.NoError(t, err)
	fn(u)
	require.NoError(t, f.store.Repos().Users.Save(ctx, u))
}

func TestGuard_AnonymousSessionIsValid(t *testing.T) {
	f := setupTestFixture(t)
	s := &sessions.Session{ID: "anon", CSRFToken: "token"}

	res, err := f.guard.Check(context.Background(), f.store.Repos().Users, s, f.now)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, "token", s.CSRFToken)
}

func TestGuard_ValidSession(t *testing.T) {
	f := setupTestFixture(t)
	s := f.session("member", users.RoleUser)

	res, err := f.guard.Check(context.Background(), f.store.Repos().Users, s, f.now)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, "member", s.AccountID)
}

func TestGuard_Invalidations(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		role      users.RoleType
		mutate    func(t *testing.T, f *testFixture)
		at        time.Duration
		want      sessions.InvalidationReason
	}{
		{
			name: "account deleted", accountID: "member", role: users.RoleUser,
			mutate: func(t *testing.T, f *testFixture) {
				require.NoError(t, f.store.Repos().Users.Delete(context.Background(), "member"))
			},
			want: sessions.ReasonDeleted,
		},
		{
			name: "promoted to admin", accountID: "member", role: users.RoleUser,
			mutate: func(t *testing.T, f *testFixture) {
				f.mutate(t, "member", func(u *users.User) { u.Role = users.RoleAdmin })
			},
			want: sessions.ReasonRoleChanged,
		},
		{
			name: "demoted to user", accountID: "admin", role: users.RoleAdmin,
			mutate: func(t *testing.T, f *testFixture) {
				f.mutate(t, "admin", func(u *users.User) { u.Role = users.RoleUser })
			},
			want: sessions.ReasonRoleChanged,
		},
		{
			name: "member archived", accountID: "member", role: users.RoleUser,
			mutate: func(t *testing.T, f *testFixture) {
				f.mutate(t, "member", func(u *users.User) { u.IsArchived = true })
			},
			want: sessions.ReasonArchived,
		},
		{
			name: "expired", accountID: "member", role: users.RoleUser,
			at:   time.Hour,
			want: sessions.ReasonExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			if tt.mutate != nil {
				tt.mutate(t, f)
			}
			s := f.session(tt.accountID, tt.role)

			res, err := f.guard.Check(context.Background(), f.store.Repos().Users, s, f.now.Add(tt.at))
			require.NoError(t, err)
			require.False(t, res.Valid)
			require.Equal(t, tt.want, res.Reason)
			require.Equal(t, tt.role, res.PreviousRole)
			require.True(t, s.IsEmpty(), "session keys must be cleared")
			require.False(t, s.LongLived)
		})
	}
}

func TestGuard_ArchivedAdminKeepsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.mutate(t, "admin", func(u *users.User) { u.IsArchived = true })
	s := f.session("admin", users.RoleAdmin)

	res, err := f.guard.Check(context.Background(), f.store.Repos().Users, s, f.now)
	require.NoError(t, err)
	require.True(t, res.Valid)
}

func TestGuard_SeesChangesWithoutCaching(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	s := f.session("member", users.RoleUser)

	res, err := f.guard.Check(ctx, f.store.Repos().Users, s, f.now)
	require.NoError(t, err)
	require.True(t, res.Valid)

	f.mutate(t, "member", func(u *users.User) { u.IsArchived = true })

	res, err = f.guard.Check(ctx, f.store.Repos().Users, s, f.now)
	require.NoError(t, err)
	require.False(t, res.Valid)
}

func TestGuard_StoreErrorIsReturned(t *testing.T) {
	f := setupTestFixture(t)
	s := f.session("member", users.RoleUser)

	_, err := f.guard.Check(context.Background(), brokenRepo{}, s, f.now)
	require.ErrorContains(t, err, "store offline")
	require.Equal(t, "member", s.AccountID, "session untouched on store failure")
}

func TestSession_NewAndExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := sessions.New(now, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, s.ID, 43)
	require.False(t, s.IsAuthenticated())
	require.False(t, s.Expired(now.Add(29*time.Minute)))
	require.True(t, s.Expired(now.Add(30*time.Minute)))

	other, err := sessions.New(now, time.Minute)
	require.NoError(t, err)
	require.NotEqual(t, s.ID, other.ID)
}

type brokenRepo struct{ users.Repo }

func (brokenRepo) GetByID(context.Context, string) (*users.User, error) {
	return nil, errors.New("store offline")
}
