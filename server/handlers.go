package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fittrack-server/users"
)

// SessionInfo describes the caller's current identity
type SessionInfo struct {
	Authenticated bool           `json:"authenticated"`
	AccountID     string         `json:"account_id,omitempty"`
	Email         string         `json:"email,omitempty"`
	Username      string         `json:"username,omitempty"`
	Role          users.RoleType `json:"role,omitempty"`
	LastLogin     *time.Time     `json:"last_login,omitempty"`
	ExpiresAt     time.Time      `json:"expires_at"`
	CSRFToken     string         `json:"csrf_token"`
}

// SessionInfoHandler serves GET /api/session. Anonymous callers get 401.
func (s *Server) SessionInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		account, err := s.auth.CurrentAccount(r.Context(), sess)
		if err != nil {
			s.respondError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, SessionInfo{
			Authenticated: true,
			AccountID:     account.ID,
			Email:         account.Email,
			Username:      account.Username,
			Role:          account.Role,
			LastLogin:     account.LastLogin,
			ExpiresAt:     sess.ExpiresAt,
			CSRFToken:     sess.CSRFToken,
		})
	}
}

// UserHomeHandler is the member landing page: the member's own account
func (s *Server) UserHomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := s.auth.CurrentAccount(r.Context(), sessionFromContext(r.Context()))
		if err != nil {
			s.respondError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

// HealthHandler reports whether the store is reachable
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			log.Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: codeNotFound})
	}
}
