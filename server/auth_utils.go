package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fittrack-server/auth"
	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/sessions"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"

	codeInvalidRequest = "invalid_request"
	codeNotFound       = "not_found"
	codeConflict       = "conflict"
	codeRateLimited    = "rate_limited"
	codeInternal       = "internal_error"
)

var errRateLimited = errors.New("rate limited")

// errorBody is the JSON shape of every rejection
type errorBody struct {
	Error            string `json:"error"`
	MinutesRemaining int    `json:"minutes_remaining,omitempty"`
	Reason           string `json:"reason,omitempty"`
	LoginRoute       string `json:"login_route,omitempty"`
}

// setSessionCookie points the client at sess. Any session cookie already queued on w is replaced.
func (s *Server) setSessionCookie(w http.ResponseWriter, sess *sessions.Session) {
	header := w.Header()
	var kept []string
	for _, c := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(c, sessionCookieName+"=") {
			kept = append(kept, c)
		}
	}
	header.Del("Set-Cookie")
	for _, c := range kept {
		header.Add("Set-Cookie", c)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.GetSecureCookies(),
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
}

// respondError translates err into the caller's protocol. Browser form submissions rejected with
// a 4xx are redirected to the rejection's login route (or formRoute) with ?error=<kind>; server
// failures and everyone else get JSON with the real status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, formRoute string) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, status, body)
		return
	}

	if wantsRedirect(r) {
		target := body.LoginRoute
		if target == "" {
			target = formRoute
		}
		if target != "" {
			redirectWithError(w, r, target, body.Error)
			return
		}
	}
	writeJSON(w, status, body)
}

// errorResponse is the single mapping from error kinds to status codes
func errorResponse(err error) (int, errorBody) {
	if authErr, ok := auth.AsError(err); ok {
		body := errorBody{Error: string(authErr.Kind), LoginRoute: authErr.LoginRoute}
		switch authErr.Kind {
		case auth.KindAccountLocked:
			body.MinutesRemaining = authErr.MinutesRemaining
			return http.StatusLocked, body
		case auth.KindAccountArchived, auth.KindCSRFInvalid:
			return http.StatusForbidden, body
		case auth.KindSessionInvalidated:
			body.Reason = string(authErr.Reason)
			return http.StatusUnauthorized, body
		default:
			return http.StatusUnauthorized, body
		}
	}

	switch {
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: codeRateLimited}
	case apperrors.Is(err, apperrors.ErrInvalidRequest):
		return http.StatusBadRequest, errorBody{Error: codeInvalidRequest}
	case apperrors.Is(err, apperrors.ErrAccountNotFound):
		return http.StatusNotFound, errorBody{Error: codeNotFound}
	case apperrors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, errorBody{Error: codeConflict}
	}
	return http.StatusInternalServerError, errorBody{Error: codeInternal}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

// respondSuccess redirects browser form submissions to path and writes v as JSON otherwise
func respondSuccess(w http.ResponseWriter, r *http.Request, path string, v any) {
	if wantsRedirect(r) {
		redirectSuccess(w, r, path)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	fullPath := path + "?error=" + url.QueryEscape(errorMsg)

	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", fullPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, fullPath, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsRedirect reports whether the caller is a browser expecting navigation rather than JSON:
// an HTML form post, or a page load that accepts HTML.
func wantsRedirect(r *http.Request) bool {
	if isJSONRequest(r) {
		return false
	}
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
		if mediaType == contentTypeForm || mediaType == "multipart/form-data" {
			return true
		}
	}
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}

func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == contentTypeJSON
}
