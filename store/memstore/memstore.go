// Package memstore is an in-process Store used for development and tests.
// A transaction holds the store lock for its whole duration and restores a snapshot on error.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/fittrack-server/audit"
	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/jrsteele09/fittrack-server/store"
	"github.com/jrsteele09/fittrack-server/users"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]*users.User
	emails   map[string]string // normalized email -> id
	sessions map[string]*sessions.Session
	audit    []*audit.Entry
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]*users.User),
		emails:   make(map[string]string),
		sessions: make(map[string]*sessions.Session),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) Repos() store.Repos {
	return s.repos(false)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos store.Repos) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(ctx, s.repos(true))
}

func (s *Store) repos(held bool) store.Repos {
	v := view{s: s, held: held}
	return store.Repos{
		Users:    userRepo{v},
		Sessions: sessionRepo{v},
		Audit:    auditRepo{v},
	}
}

type snapshot struct {
	users    map[string]*users.User
	emails   map[string]string
	sessions map[string]*sessions.Session
	audit    []*audit.Entry
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		users:    make(map[string]*users.User, len(s.users)),
		emails:   make(map[string]string, len(s.emails)),
		sessions: make(map[string]*sessions.Session, len(s.sessions)),
		audit:    make([]*audit.Entry, len(s.audit)),
	}
	for k, u := range s.users {
		snap.users[k] = u.Clone()
	}
	for k, id := range s.emails {
		snap.emails[k] = id
	}
	for k, sess := range s.sessions {
		snap.sessions[k] = sess.Clone()
	}
	for i, e := range s.audit {
		snap.audit[i] = e.Clone()
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.emails = snap.emails
	s.sessions = snap.sessions
	s.audit = snap.audit
}

// view locks the store per call unless the caller already holds the lock
type view struct {
	s    *Store
	held bool
}

func (v view) do(fn func()) {
	if !v.held {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	fn()
}

type userRepo struct{ view }

func (r userRepo) GetByEmail(ctx context.Context, email string) (u *users.User, err error) {
	r.do(func() {
		id, ok := r.s.emails[users.NormalizeEmail(email)]
		if !ok {
			err = apperrors.ErrAccountNotFound
			return
		}
		u = r.s.users[id].Clone()
	})
	return u, err
}

func (r userRepo) GetByID(ctx context.Context, id string) (u *users.User, err error) {
	r.do(func() {
		stored, ok := r.s.users[id]
		if !ok {
			err = apperrors.ErrAccountNotFound
			return
		}
		u = stored.Clone()
	})
	return u, err
}

func (r userRepo) Save(ctx context.Context, user *users.User) (err error) {
	if user == nil || user.ID == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[memstore.Save] user id required")
	}
	r.do(func() {
		email := users.NormalizeEmail(user.Email)
		if owner, ok := r.s.emails[email]; ok && owner != user.ID {
			err = apperrors.Wrapf(apperrors.ErrConflict, "[memstore.Save] email %s", email)
			return
		}
		if prev, ok := r.s.users[user.ID]; ok {
			delete(r.s.emails, users.NormalizeEmail(prev.Email))
		}
		stored := user.Clone()
		stored.Email = email
		r.s.users[user.ID] = stored
		r.s.emails[email] = user.ID
	})
	return err
}

func (r userRepo) Delete(ctx context.Context, id string) (err error) {
	r.do(func() {
		u, ok := r.s.users[id]
		if !ok {
			err = apperrors.ErrAccountNotFound
			return
		}
		delete(r.s.emails, users.NormalizeEmail(u.Email))
		delete(r.s.users, id)
	})
	return err
}

func (r userRepo) List(ctx context.Context, offset, limit int) (list []*users.User, err error) {
	r.do(func() {
		all := make([]*users.User, 0, len(r.s.users))
		for _, u := range r.s.users {
			all = append(all, u)
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].DateJoined.Equal(all[j].DateJoined) {
				return all[i].ID < all[j].ID
			}
			return all[i].DateJoined.Before(all[j].DateJoined)
		})
		if offset < 0 {
			offset = 0
		}
		if offset >= len(all) {
			list = []*users.User{}
			return
		}
		end := len(all)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		for _, u := range all[offset:end] {
			list = append(list, u.Clone())
		}
	})
	return list, err
}

type sessionRepo struct{ view }

func (r sessionRepo) Get(ctx context.Context, id string) (s *sessions.Session, err error) {
	r.do(func() {
		stored, ok := r.s.sessions[id]
		if !ok {
			err = apperrors.ErrSessionNotFound
			return
		}
		s = stored.Clone()
	})
	return s, err
}

func (r sessionRepo) Upsert(ctx context.Context, session *sessions.Session) error {
	if session == nil || session.ID == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[memstore.Upsert] session id required")
	}
	r.do(func() {
		r.s.sessions[session.ID] = session.Clone()
	})
	return nil
}

func (r sessionRepo) Delete(ctx context.Context, id string) error {
	r.do(func() {
		delete(r.s.sessions, id)
	})
	return nil
}

func (r sessionRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	r.do(func() {
		for id, s := range r.s.sessions {
			if s.AccountID == accountID {
				delete(r.s.sessions, id)
			}
		}
	})
	return nil
}

func (r sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (n int64, err error) {
	r.do(func() {
		for id, s := range r.s.sessions {
			if s.Expired(now) {
				delete(r.s.sessions, id)
				n++
			}
		}
	})
	return n, nil
}

type auditRepo struct{ view }

func (r auditRepo) Append(ctx context.Context, entry *audit.Entry) error {
	if entry == nil || entry.ID == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[memstore.Append] entry id required")
	}
	r.do(func() {
		r.s.audit = append(r.s.audit, entry.Clone())
	})
	return nil
}

func (r auditRepo) ListByTarget(ctx context.Context, targetID string) (list []*audit.Entry, err error) {
	r.do(func() {
		for _, e := range r.s.audit {
			if e.TargetID != nil && *e.TargetID == targetID {
				list = append(list, e.Clone())
			}
		}
	})
	return list, nil
}

func (r auditRepo) ListRecent(ctx context.Context, limit int) (list []*audit.Entry, err error) {
	r.do(func() {
		for i := len(r.s.audit) - 1; i >= 0; i-- {
			if limit > 0 && len(list) == limit {
				break
			}
			list = append(list, r.s.audit[i].Clone())
		}
	})
	return list, nil
}

func (r auditRepo) TombstoneTarget(ctx context.Context, targetID string) (n int64, err error) {
	r.do(func() {
		for _, e := range r.s.audit {
			if e.TargetID != nil && *e.TargetID == targetID {
				e.TargetID = nil
				e.TargetDeleted = true
				n++
			}
		}
	})
	return n, nil
}
