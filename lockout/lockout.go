// Package lockout holds the brute-force lockout state machine. It only ever touches an
// account's FailedAttempts and LockedUntil fields; persisting them is the caller's job.
package lockout

import (
	"time"

	"github.com/jrsteele09/fittrack-server/users"
)

const (
	DefaultThreshold = 5
	DefaultDuration  = 15 * time.Minute
)

// Policy configures when an account locks and for how long
type Policy struct {
	Threshold int
	Duration  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, Duration: DefaultDuration}
}

type Tracker struct {
	policy Policy
}

// NewTracker returns a tracker for p, substituting defaults for non-positive values
func NewTracker(p Policy) *Tracker {
	if p.Threshold <= 0 {
		p.Threshold = DefaultThreshold
	}
	if p.Duration <= 0 {
		p.Duration = DefaultDuration
	}
	return &Tracker{policy: p}
}

func (t *Tracker) Policy() Policy {
	return t.policy
}

// IsLocked is true iff LockedUntil is set and strictly after now
func (t *Tracker) IsLocked(u *users.User, now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// MinutesRemaining rounds the remaining lock up to whole minutes, 0 when not locked
func (t *Tracker) MinutesRemaining(u *users.User, now time.Time) int {
	if !t.IsLocked(u, now) {
		return 0
	}
	remaining := u.LockedUntil.Sub(now)
	minutes := int(remaining / time.Minute)
	if remaining%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// RegisterFailure counts one failed verification. Reaching the threshold sets the lock and
// resets the counter in the same transition. It reports whether the account is now locked.
func (t *Tracker) RegisterFailure(u *users.User, now time.Time) bool {
	if u.LockedUntil != nil && !u.LockedUntil.After(now) {
		u.LockedUntil = nil
	}
	u.FailedAttempts++
	if u.FailedAttempts < t.policy.Threshold {
		return false
	}
	until := now.Add(t.policy.Duration)
	u.LockedUntil = &until
	u.FailedAttempts = 0
	return true
}

// ClearFailures resets both lockout fields after a successful verification
func (t *Tracker) ClearFailures(u *users.User) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
}
