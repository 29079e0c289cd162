// Package csrf issues, rotates and validates the per-session token that every
// state-changing request has to present.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/fittrack-server/sessions"
)

const (
	tokenLength = 32 // 32 bytes = 256 bits

	// HeaderName carries the token in both directions; FormField is the form fallback
	HeaderName = "X-CSRF-Token"
	FormField  = "csrf_token"
)

type Manager struct {
	random io.Reader
}

type Option func(*Manager)

// WithRandom swaps the entropy source (tests only)
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		m.random = r
	}
}

func NewManager(options ...Option) *Manager {
	m := &Manager{random: rand.Reader}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// IssueOrGet returns the session's live token, generating one if the session has none.
// issued reports whether the session was modified and needs persisting.
func (m *Manager) IssueOrGet(s *sessions.Session) (token string, issued bool, err error) {
	if s.CSRFToken != "" {
		return s.CSRFToken, false, nil
	}
	token, err = m.Rotate(s)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// Rotate always replaces the session's token with a fresh one
func (m *Manager) Rotate(s *sessions.Session) (string, error) {
	b := make([]byte, tokenLength)
	if _, err := io.ReadFull(m.random, b); err != nil {
		return "", fmt.Errorf("[csrf.Rotate] reading random bytes: %w", err)
	}
	s.CSRFToken = base64.RawURLEncoding.EncodeToString(b)
	return s.CSRFToken, nil
}

// Validate is true iff the session holds a token and presented equals it exactly
func (m *Manager) Validate(s *sessions.Session, presented string) bool {
	if s == nil || s.CSRFToken == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRFToken), []byte(presented)) == 1
}

// IsSafeMethod reports whether method is exempt from token checks
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// PresentedToken reads the token from the request header, falling back to the form field
func PresentedToken(r *http.Request) string {
	if token := r.Header.Get(HeaderName); token != "" {
		return token
	}
	return r.PostFormValue(FormField)
}
