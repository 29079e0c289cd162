package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/users"
)

// ChangeRoleRequest is the payload of POST /admin/users/{id}/role
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// AdminDataHandler serves the admin overview: active and archived members plus recent audit entries
func (s *Server) AdminDataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := s.admin.Overview(r.Context(), sessionFromContext(r.Context()))
		if err != nil {
			s.respondError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

func (s *Server) AdminArchiveUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := s.admin.ArchiveUser(r.Context(), sessionFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			s.respondError(w, r, err, RouteAdminHome)
			return
		}
		respondSuccess(w, r, RouteAdminHome, account)
	}
}

func (s *Server) AdminRestoreUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := s.admin.RestoreUser(r.Context(), sessionFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			s.respondError(w, r, err, RouteAdminHome)
			return
		}
		respondSuccess(w, r, RouteAdminHome, account)
	}
}

func (s *Server) AdminDeleteUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.admin.DeleteUser(r.Context(), sessionFromContext(r.Context()), id); err != nil {
			s.respondError(w, r, err, RouteAdminHome)
			return
		}
		respondSuccess(w, r, RouteAdminHome, map[string]string{"status": "deleted", "id": id})
	}
}

func (s *Server) AdminChangeRoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChangeRoleRequest
		if isJSONRequest(r) {
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
				s.respondError(w, r, fmt.Errorf("[Server.AdminChangeRole] decode: %v: %w", err, apperrors.ErrInvalidRequest), RouteAdminHome)
				return
			}
		} else {
			req.Role = r.PostFormValue("role")
		}
		if err := s.validate.Struct(req); err != nil {
			s.respondError(w, r, fmt.Errorf("[Server.AdminChangeRole] %v: %w", err, apperrors.ErrInvalidRequest), RouteAdminHome)
			return
		}

		account, err := s.admin.ChangeRole(r.Context(), sessionFromContext(r.Context()), chi.URLParam(r, "id"), users.RoleType(req.Role))
		if err != nil {
			s.respondError(w, r, err, RouteAdminHome)
			return
		}
		respondSuccess(w, r, RouteAdminHome, account)
	}
}
