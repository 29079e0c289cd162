package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fittrack-server/auth"
	"github.com/jrsteele09/fittrack-server/csrf"
	"github.com/jrsteele09/fittrack-server/internal/metrics"
	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/jrsteele09/fittrack-server/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the request's *sessions.Session
	ContextKeySession ContextKey = "session"
)

// sessionFromContext returns the session loaded by SessionMiddleware
func sessionFromContext(ctx context.Context) *sessions.Session {
	sess, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return sess
}

// SessionMiddleware resolves the session cookie into a session and stores it on the request context.
// Unknown or missing cookies get a fresh anonymous session.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			id = cookie.Value
		}

		sess, err := s.auth.LoadSession(r.Context(), id)
		if err != nil {
			s.respondError(w, r, err, "")
			return
		}
		if sess.ID != id {
			s.setSessionCookie(w, sess)
		}

		ctx := context.WithValue(r.Context(), ContextKeySession, sess)
		next(w, r.WithContext(ctx))
	}
}

// CSRFMiddleware hands out the session's token on safe methods and demands it back on all others.
// A rejected request never reaches the handler.
func (s *Server) CSRFMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())

		if csrf.IsSafeMethod(r.Method) {
			token, err := s.auth.CSRFToken(r.Context(), sess)
			if err != nil {
				s.respondError(w, r, err, "")
				return
			}
			w.Header().Set(csrf.HeaderName, token)
			next(w, r)
			return
		}

		if err := s.auth.RequireCSRF(sess, csrf.PresentedToken(r)); err != nil {
			s.respondError(w, r, err, formRouteFor(r))
			return
		}
		next(w, r)
	}
}

// GuardMiddleware re-checks the session against the account's current state. An invalidated
// session has already been cleared and re-keyed by the service; the client is pointed at the new key.
func (s *Server) GuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if err := s.auth.GuardSession(r.Context(), sess); err != nil {
			if auth.KindOf(err) == auth.KindSessionInvalidated {
				s.setSessionCookie(w, sess)
			}
			s.respondError(w, r, err, "")
			return
		}
		next(w, r)
	}
}

// SoftGuardMiddleware runs the same check for pages an invalidated caller is sent to (the login
// entry points and logout). The request continues with the cleared session instead of being rejected.
func (s *Server) SoftGuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if err := s.auth.GuardSession(r.Context(), sess); err != nil {
			if auth.KindOf(err) != auth.KindSessionInvalidated {
				s.respondError(w, r, err, "")
				return
			}
			s.setSessionCookie(w, sess)
		}
		next(w, r)
	}
}

// RequireRole only lets sessions holding role through
func (s *Server) RequireRole(role users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if err := s.auth.RequireRole(sessionFromContext(r.Context()), role); err != nil {
				s.respondError(w, r, err, "")
				return
			}
			next(w, r)
		}
	}
}

// RateLimitMiddleware throttles credential submissions per client address
func (s *Server) RateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			metrics.LoginRateLimited.Inc()
			log.Warn().Str("remoteAddr", r.RemoteAddr).Str("path", r.URL.Path).Msg("login rate limited")
			s.respondError(w, r, errRateLimited, formRouteFor(r))
			return
		}
		next(w, r)
	}
}

// formRouteFor is the page a browser form on r's path is sent back to when rejected
func formRouteFor(r *http.Request) string {
	switch path := r.URL.Path; {
	case path == RouteLogin, path == RouteAdminLogin:
		return path
	case strings.HasPrefix(path, RouteAdminHome):
		return RouteAdminHome
	}
	return RouteUserHome
}
