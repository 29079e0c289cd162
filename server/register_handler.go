package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/users"
)

// RegisterRequest is a self-service sign-up
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,max=150"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// RegisterResponse describes the created member
type RegisterResponse struct {
	AccountID string         `json:"account_id"`
	Email     string         `json:"email"`
	Role      users.RoleType `json:"role"`
	Redirect  string         `json:"redirect"`
}

// RegisterHandler creates a member account. The caller is not signed in; form submissions are
// sent to the login page and JSON callers get 201.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.decodeRegisterRequest(w, r)
		if err != nil {
			s.respondError(w, r, err, RouteRegister)
			return
		}

		account, err := s.auth.Register(r.Context(), req.Email, req.Username, req.Password)
		if err != nil {
			s.respondError(w, r, err, RouteRegister)
			return
		}

		if wantsRedirect(r) {
			redirectSuccess(w, r, RouteLogin)
			return
		}
		writeJSON(w, http.StatusCreated, RegisterResponse{
			AccountID: account.ID,
			Email:     account.Email,
			Role:      account.Role,
			Redirect:  RouteLogin,
		})
	}
}

func (s *Server) decodeRegisterRequest(w http.ResponseWriter, r *http.Request) (RegisterRequest, error) {
	var req RegisterRequest
	if isJSONRequest(r) {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			return req, fmt.Errorf("[Server.decodeRegisterRequest] decode: %v: %w", err, apperrors.ErrInvalidRequest)
		}
	} else {
		req = RegisterRequest{
			Username:        r.PostFormValue("username"),
			Email:           r.PostFormValue("email"),
			Password:        r.PostFormValue("password"),
			ConfirmPassword: r.PostFormValue("confirm_password"),
		}
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	if err := s.validate.Struct(req); err != nil {
		return req, fmt.Errorf("[Server.decodeRegisterRequest] %v: %w", err, apperrors.ErrInvalidRequest)
	}
	return req, nil
}
