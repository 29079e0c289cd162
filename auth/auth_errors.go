package auth

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/jrsteele09/fittrack-server/users"
)

// Kind is the machine readable name of a trust-layer rejection
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountLocked      Kind = "account_locked"
	KindAccountArchived    Kind = "account_archived"
	KindCSRFInvalid        Kind = "csrf_token_invalid"
	KindSessionInvalidated Kind = "session_invalidated"
	KindUnauthorized       Kind = "unauthorized"
)

// Login entry points a rejected caller is sent back to
const (
	UserLoginRoute  = "/login"
	AdminLoginRoute = "/admin-login"
)

// Error is a recoverable rejection. Only the fields relevant to Kind are set.
type Error struct {
	Kind             Kind
	MinutesRemaining int                         // KindAccountLocked
	Reason           sessions.InvalidationReason // KindSessionInvalidated
	LoginRoute       string                      // where the caller should sign in again
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAccountLocked:
		return fmt.Sprintf("%s: %d minutes remaining", e.Kind, e.MinutesRemaining)
	case KindSessionInvalidated:
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return string(e.Kind)
}

// AsError returns the *Error in err's chain, if any
func AsError(err error) (*Error, bool) {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// KindOf returns the rejection kind carried by err, or "" when err is not a rejection
func KindOf(err error) Kind {
	if authErr, ok := AsError(err); ok {
		return authErr.Kind
	}
	return ""
}

// LoginRouteFor picks the sign-in page matching role
func LoginRouteFor(role users.RoleType) string {
	if role == users.RoleAdmin {
		return AdminLoginRoute
	}
	return UserLoginRoute
}

func errInvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials}
}

func errLocked(minutes int) *Error {
	return &Error{Kind: KindAccountLocked, MinutesRemaining: minutes}
}

func errArchived() *Error {
	return &Error{Kind: KindAccountArchived}
}

func errCSRF() *Error {
	return &Error{Kind: KindCSRFInvalid}
}

func errSessionInvalidated(res sessions.Result) *Error {
	return &Error{Kind: KindSessionInvalidated, Reason: res.Reason, LoginRoute: LoginRouteFor(res.PreviousRole)}
}

func errUnauthorized(loginRoute string) *Error {
	return &Error{Kind: KindUnauthorized, LoginRoute: loginRoute}
}
