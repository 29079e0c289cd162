package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/internal/metrics"
	"github.com/jrsteele09/fittrack-server/lockout"
	"github.com/jrsteele09/fittrack-server/users"
)

// OutcomeKind enumerates the results of a credential check
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeInvalidCredentials
	OutcomeLocked
	OutcomeArchived
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidCredentials:
		return string(KindInvalidCredentials)
	case OutcomeLocked:
		return string(KindAccountLocked)
	case OutcomeArchived:
		return string(KindAccountArchived)
	}
	return "unknown"
}

// Outcome of a login attempt. Account is only set on success.
type Outcome struct {
	Kind             OutcomeKind
	Account          *users.User
	MinutesRemaining int
}

// Err converts a failed outcome into its rejection, nil on success
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeLocked:
		return errLocked(o.MinutesRemaining)
	case OutcomeArchived:
		return errArchived()
	}
	return errInvalidCredentials()
}

// FactorCheck is an extra condition a resolved account has to meet on a particular login form.
// A false result counts as a failed attempt.
type FactorCheck func(u *users.User) bool

// dummyHash is compared against when the email is unknown so both paths cost one bcrypt check
var dummyHash = sync.OnceValue(func() string {
	hash, err := users.HashPassword("fittrack-unknown-account")
	if err != nil {
		log.Err(err).Msg("failed to build dummy password hash")
	}
	return hash
})

// Verifier checks a submitted secret against the stored hash and drives the lockout tracker
type Verifier struct {
	tracker *lockout.Tracker
}

func NewVerifier(tracker *lockout.Tracker) *Verifier {
	return &Verifier{tracker: tracker}
}

// Verify resolves the account by email and checks secret. Lockout changes are saved through accounts,
// which should be bound to the caller's transaction.
func (v *Verifier) Verify(ctx context.Context, accounts users.Repo, email, secret string, now time.Time, extra FactorCheck) (Outcome, error) {
	account, err := accounts.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrAccountNotFound) {
			users.CheckPasswordHash(secret, dummyHash())
			return Outcome{Kind: OutcomeInvalidCredentials}, nil
		}
		return Outcome{}, fmt.Errorf("[Verifier.Verify] accounts.GetByEmail: %w", err)
	}

	if v.tracker.IsLocked(account, now) {
		return Outcome{Kind: OutcomeLocked, MinutesRemaining: v.tracker.MinutesRemaining(account, now)}, nil
	}

	// both factors are always evaluated so the response time does not say which one failed
	passwordOK := users.CheckPasswordHash(secret, account.PasswordHash)
	factorOK := extra == nil || extra(account)

	if !passwordOK || !factorOK {
		if v.tracker.RegisterFailure(account, now) {
			metrics.AccountLocks.Inc()
			log.Warn().Str("accountID", account.ID).Time("lockedUntil", *account.LockedUntil).Msg("account locked after repeated failures")
		}
		if err := accounts.Save(ctx, account); err != nil {
			return Outcome{}, fmt.Errorf("[Verifier.Verify] accounts.Save failure: %w", err)
		}
		return Outcome{Kind: OutcomeInvalidCredentials}, nil
	}

	v.tracker.ClearFailures(account)
	if !account.IsArchived {
		loginAt := now
		account.LastLogin = &loginAt
	}
	if err := accounts.Save(ctx, account); err != nil {
		return Outcome{}, fmt.Errorf("[Verifier.Verify] accounts.Save success: %w", err)
	}

	if account.IsArchived {
		return Outcome{Kind: OutcomeArchived}, nil
	}
	return Outcome{Kind: OutcomeSuccess, Account: account}, nil
}
