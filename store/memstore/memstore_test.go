package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/fittrack-server/audit"
	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/internal/utils"
	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/jrsteele09/fittrack-server/store"
	"github.com/jrsteele09/fittrack-server/store/memstore"
	"github.com/jrsteele09/fittrack-server/users"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *memstore.Store, id, email string) *users.User {
	t.Helper()
	u := &users.User{ID: id, Email: email, Username: id, Role: users.RoleUser, DateJoined: now}
	require.NoError(t, s.Repos().Users.Save(context.Background(), u))
	return u
}

func TestUsers_LookupIsCaseInsensitive(t *testing.T) {
	s := memstore.New()
	seedUser(t, s, "u-1", "Alice@Example.com")

	got, err := s.Repos().Users.GetByEmail(context.Background(), "  alice@EXAMPLE.com ")
	require.NoError(t, err)
	require.Equal(t, "u-1", got.ID)
	require.Equal(t, "alice@example.com", got.Email)
}

func TestUsers_NotFound(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	_, err := s.Repos().Users.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
	_, err = s.Repos().Users.GetByID(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
	require.ErrorIs(t, s.Repos().Users.Delete(ctx, "missing"), apperrors.ErrAccountNotFound)
}

func TestUsers_EmailConflict(t *testing.T) {
	s := memstore.New()
	seedUser(t, s, "u-1", "alice@example.com")

	err := s.Repos().Users.Save(context.Background(), &users.User{ID: "u-2", Email: "ALICE@example.com"})
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUsers_ReturnsCopies(t *testing.T) {
	s := memstore.New()
	seedUser(t, s, "u-1", "alice@example.com")
	ctx := context.Background()

	got, err := s.Repos().Users.GetByID(ctx, "u-1")
	require.NoError(t, err)
	got.FailedAttempts = 4

	again, err := s.Repos().Users.GetByID(ctx, "u-1")
	require.NoError(t, err)
	require.Zero(t, again.FailedAttempts)
}

func TestUsers_ListPages(t *testing.T) {
	s := memstore.New()
	for i, id := range []string{"u-1", "u-2", "u-3"} {
		u := &users.User{ID: id, Email: id + "@example.com", DateJoined: now.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.Repos().Users.Save(context.Background(), u))
	}

	page, err := s.Repos().Users.List(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "u-2", page[0].ID)

	page, err = s.Repos().Users.List(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestSessions_DeleteByAccountAndExpired(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	repo := s.Repos().Sessions

	require.NoError(t, repo.Upsert(ctx, &sessions.Session{ID: "a", AccountID: "u-1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Upsert(ctx, &sessions.Session{ID: "b", AccountID: "u-1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Upsert(ctx, &sessions.Session{ID: "c", AccountID: "u-2", ExpiresAt: now}))

	require.NoError(t, repo.DeleteByAccount(ctx, "u-1"))
	_, err := repo.Get(ctx, "a")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestAudit_OrderingAndTombstone(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	repo := s.Repos().Audit

	for i, action := range []audit.Action{audit.ActionArchiveUser, audit.ActionRestoreUser, audit.ActionChangeRole} {
		require.NoError(t, repo.Append(ctx, &audit.Entry{
			ID: string(rune('a' + i)), ActorID: "admin", TargetID: utils.Ptr("u-1"), Action: action, CreatedAt: now,
		}))
	}
	require.NoError(t, repo.Append(ctx, &audit.Entry{ID: "z", ActorID: "admin", TargetID: utils.Ptr("u-2"), Action: audit.ActionArchiveUser, CreatedAt: now}))

	byTarget, err := repo.ListByTarget(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, byTarget, 3)
	require.Equal(t, audit.ActionArchiveUser, byTarget[0].Action)
	require.Equal(t, audit.ActionChangeRole, byTarget[2].Action)

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "z", recent[0].ID)
	require.Equal(t, "c", recent[1].ID)

	n, err := repo.TombstoneTarget(ctx, "u-1")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	byTarget, err = repo.ListByTarget(ctx, "u-1")
	require.NoError(t, err)
	require.Empty(t, byTarget)

	recent, err = repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	require.True(t, recent[1].TargetDeleted)
	require.Nil(t, recent[1].TargetID)
	require.False(t, recent[0].TargetDeleted)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := memstore.New()
	seedUser(t, s, "u-1", "alice@example.com")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, repos store.Repos) error {
		u, err := repos.Users.GetByID(ctx, "u-1")
		require.NoError(t, err)
		u.IsArchived = true
		require.NoError(t, repos.Users.Save(ctx, u))
		require.NoError(t, repos.Sessions.Upsert(ctx, &sessions.Session{ID: "s-1", AccountID: "u-1"}))
		require.NoError(t, repos.Audit.Append(ctx, &audit.Entry{ID: "e-1", Action: audit.ActionArchiveUser}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := s.Repos().Users.GetByID(ctx, "u-1")
	require.NoError(t, err)
	require.False(t, u.IsArchived)
	_, err = s.Repos().Sessions.Get(ctx, "s-1")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	recent, err := s.Repos().Audit.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, recent)
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	s := memstore.New()
	seedUser(t, s, "u-1", "alice@example.com")
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, repos store.Repos) error {
		return repos.Users.Delete(ctx, "u-1")
	})
	require.NoError(t, err)

	_, err = s.Repos().Users.GetByEmail(ctx, "alice@example.com")
	require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
}

func TestWithinTx_RollsBackOnPanic(t *testing.T) {
	s := memstore.New()
	seedUser(t, s, "u-1", "alice@example.com")
	ctx := context.Background()

	require.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, repos store.Repos) error {
			_ = repos.Users.Delete(ctx, "u-1")
			panic("kaboom")
		})
	})

	_, err := s.Repos().Users.GetByID(ctx, "u-1")
	require.NoError(t, err)
}
