package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fittrack-server/auth"
	"github.com/jrsteele09/fittrack-server/csrf"
	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/users"
)

const maxBodyBytes = 1 << 16

// LoginPageData is what a sign-in page needs to render its form
type LoginPageData struct {
	CSRFToken string `json:"csrf_token"`
	Error     string `json:"error,omitempty"`
	AdminForm bool   `json:"admin_form"`
}

// LoginRequest is a credential submission from either login form
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,max=128"`
	AdminName string `json:"admin_name" validate:"max=150"`
}

// LoginResponse tells a JSON caller who it now is and where to go
type LoginResponse struct {
	AccountID string         `json:"account_id"`
	Role      users.RoleType `json:"role"`
	Redirect  string         `json:"redirect"`
	CSRFToken string         `json:"csrf_token"`
}

// LoginPageHandler serves GET /login, GET /admin-login and GET /register. The CSRF token the form must echo back
// was issued by CSRFMiddleware and is repeated in the body.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, LoginPageData{
			CSRFToken: sess.CSRFToken,
			Error:     r.URL.Query().Get("error"),
			AdminForm: r.URL.Path == RouteAdminLogin,
		})
	}
}

// LoginSubmissionHandler processes a login form. adminForm selects the administrator variant,
// which also requires admin_name.
func (s *Server) LoginSubmissionHandler(adminForm bool) http.HandlerFunc {
	formRoute := RouteLogin
	if adminForm {
		formRoute = RouteAdminLogin
	}

	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.decodeLoginRequest(w, r, adminForm)
		if err != nil {
			s.respondError(w, r, err, formRoute)
			return
		}

		var outcome auth.Outcome
		if adminForm {
			outcome, err = s.auth.AdminLoginAttempt(r.Context(), req.Email, req.AdminName, req.Password)
		} else {
			outcome, err = s.auth.LoginAttempt(r.Context(), req.Email, req.Password)
		}
		if err != nil {
			s.respondError(w, r, err, formRoute)
			return
		}
		if err := outcome.Err(); err != nil {
			s.respondError(w, r, err, formRoute)
			return
		}

		sess := sessionFromContext(r.Context())
		if err := s.auth.EstablishSession(r.Context(), sess, outcome.Account); err != nil {
			s.respondError(w, r, err, formRoute)
			return
		}
		s.setSessionCookie(w, sess)
		w.Header().Set(csrf.HeaderName, sess.CSRFToken)

		landing := RouteUserHome
		if outcome.Account.Role == users.RoleAdmin {
			landing = RouteAdminHome
		}
		respondSuccess(w, r, landing, LoginResponse{
			AccountID: outcome.Account.ID,
			Role:      outcome.Account.Role,
			Redirect:  landing,
			CSRFToken: sess.CSRFToken,
		})
	}
}

// decodeLoginRequest reads a JSON body or form fields and validates them
func (s *Server) decodeLoginRequest(w http.ResponseWriter, r *http.Request, adminForm bool) (LoginRequest, error) {
	var req LoginRequest
	if isJSONRequest(r) {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			return req, fmt.Errorf("[Server.decodeLoginRequest] decode: %v: %w", err, apperrors.ErrInvalidRequest)
		}
	} else {
		req = LoginRequest{
			Email:     r.PostFormValue("email"),
			Password:  r.PostFormValue("password"),
			AdminName: r.PostFormValue("admin_name"),
		}
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validate.Struct(req); err != nil {
		return req, fmt.Errorf("[Server.decodeLoginRequest] %v: %w", err, apperrors.ErrInvalidRequest)
	}
	if adminForm {
		if err := s.validate.Var(req.AdminName, "required"); err != nil {
			return req, fmt.Errorf("[Server.decodeLoginRequest] admin_name: %v: %w", err, apperrors.ErrInvalidRequest)
		}
	}
	return req, nil
}

// LogoutHandler ends the caller's session. It is POST only and CSRF protected.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		loginRoute := auth.LoginRouteFor(sess.Role)

		if err := s.auth.Logout(r.Context(), sess); err != nil {
			log.Err(err).Msg("logout failed")
			s.respondError(w, r, err, "")
			return
		}
		s.setSessionCookie(w, sess)

		respondSuccess(w, r, loginRoute, map[string]string{
			"status":   "logged_out",
			"redirect": loginRoute,
		})
	}
}
