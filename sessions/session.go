package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jrsteele09/fittrack-server/users"
)

const idLength = 32 // 32 bytes = 256 bits

// Session is server-held state keyed by the opaque identifier in the client's cookie.
// Role is a snapshot taken at login and is re-checked against the account on every request.
type Session struct {
	ID        string
	AccountID string
	Role      users.RoleType
	CSRFToken string
	LongLived bool // set once a login succeeds; selects the extended expiry window
	CreatedAt time.Time
	ExpiresAt time.Time
}

// New returns an anonymous session with a fresh identifier
func New(now time.Time, maxAge time.Duration) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(maxAge),
	}, nil
}

// NewID generates a random, URL safe session identifier
func NewID() (string, error) {
	b := make([]byte, idLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[sessions.NewID] rand.Read: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Session) IsAuthenticated() bool {
	return s.AccountID != ""
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clear drops every key the session carries. The identifier and timestamps are kept.
func (s *Session) Clear() {
	s.AccountID = ""
	s.Role = ""
	s.CSRFToken = ""
	s.LongLived = false
}

// IsEmpty reports whether the session carries no identity and no token
func (s *Session) IsEmpty() bool {
	return s.AccountID == "" && s.Role == "" && s.CSRFToken == ""
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
