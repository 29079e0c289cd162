// Package auth is the request-trust layer: credential verification with lockout, session
// establishment, CSRF enforcement, session validity checks and attribution of admin actions.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fittrack-server/audit"
	"github.com/jrsteele09/fittrack-server/csrf"
	"github.com/jrsteele09/fittrack-server/internal/config"
	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
	"github.com/jrsteele09/fittrack-server/internal/metrics"
	"github.com/jrsteele09/fittrack-server/lockout"
	"github.com/jrsteele09/fittrack-server/sessions"
	"github.com/jrsteele09/fittrack-server/store"
	"github.com/jrsteele09/fittrack-server/users"
)

// Settings tunes the service. Zero values fall back to the defaults below.
type Settings struct {
	Lockout       lockout.Policy
	SessionMaxAge time.Duration // anonymous sessions
	LongLivedAge  time.Duration // sessions established by a login
	AdminUsername string        // extra factor required by the admin login form
	AdminEmail    string        // reserved against self-registration
}

const (
	defaultSessionMaxAge = 30 * time.Minute
	defaultLongLivedAge  = 30 * 24 * time.Hour
)

// SettingsFromConfig reads the security section of the configuration
func SettingsFromConfig(cfg config.SecurityConfig) Settings {
	return Settings{
		Lockout: lockout.Policy{
			Threshold: cfg.GetLockoutThreshold(),
			Duration:  cfg.GetLockoutDuration(),
		},
		SessionMaxAge: cfg.GetMaxSessionAge(),
		LongLivedAge:  cfg.GetLongLivedSessionAge(),
		AdminUsername: cfg.GetAdminUsername(),
		AdminEmail:    cfg.GetAdminEmail(),
	}
}

// Service is the trust-layer facade the HTTP boundary talks to
type Service struct {
	uow      store.UnitOfWork
	settings Settings
	tracker  *lockout.Tracker
	verifier *Verifier
	csrf     *csrf.Manager
	guard    *sessions.Guard
	audit    *audit.Logger
	nowTime  func() time.Time
}

// ServiceOption defines a function type to modify the Service instance
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithCSRFManager replaces the default token manager
func WithCSRFManager(m *csrf.Manager) ServiceOption {
	return func(s *Service) {
		s.csrf = m
	}
}

// NewService wires the trust layer over a unit of work
func NewService(uow store.UnitOfWork, settings Settings, options ...ServiceOption) (*Service, error) {
	if uow == nil {
		return nil, errors.New("[NewService] unit of work is required")
	}
	if settings.AdminUsername == "" {
		return nil, errors.New("[NewService] admin username is required")
	}
	if settings.SessionMaxAge <= 0 {
		settings.SessionMaxAge = defaultSessionMaxAge
	}
	if settings.LongLivedAge <= 0 {
		settings.LongLivedAge = defaultLongLivedAge
	}

	tracker := lockout.NewTracker(settings.Lockout)
	settings.Lockout = tracker.Policy()

	s := &Service{
		uow:      uow,
		settings: settings,
		tracker:  tracker,
		verifier: NewVerifier(tracker),
		csrf:     csrf.NewManager(),
		guard:    sessions.NewGuard(),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.audit = audit.NewLogger(audit.WithNowTime(s.nowTime))

	return s, nil
}

func (s *Service) Now() time.Time {
	return s.nowTime()
}

func (s *Service) Settings() Settings {
	return s.settings
}

// LoginAttempt verifies an ordinary member's credentials. Admin accounts are refused here
// and the refusal counts as a failed attempt.
func (s *Service) LoginAttempt(ctx context.Context, email, secret string) (Outcome, error) {
	return s.login(ctx, "user", email, secret, func(u *users.User) bool {
		return u.Role == users.RoleUser
	})
}

// AdminLoginAttempt verifies an administrator. adminName has to match the configured
// administrative username; a mismatch counts as a failed attempt against the resolved account.
func (s *Service) AdminLoginAttempt(ctx context.Context, email, adminName, secret string) (Outcome, error) {
	return s.login(ctx, "admin", email, secret, func(u *users.User) bool {
		nameOK := subtle.ConstantTimeCompare([]byte(adminName), []byte(s.settings.AdminUsername)) == 1
		return nameOK && u.Role == users.RoleAdmin
	})
}

func (s *Service) login(ctx context.Context, form, email, secret string, extra FactorCheck) (Outcome, error) {
	var outcome Outcome
	now := s.nowTime()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repos) error {
		var err error
		outcome, err = s.verifier.Verify(ctx, repos.Users, email, secret, now, extra)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("[Service.login] %w", err)
	}

	metrics.LoginOutcomes.WithLabelValues(form, outcome.Kind.String()).Inc()
	if outcome.Kind != OutcomeSuccess {
		log.Warn().Str("form", form).Str("outcome", outcome.Kind.String()).Msg("login rejected")
	}
	return outcome, nil
}

// LoadSession returns the stored session for id, or a fresh anonymous one when id is unknown or
// names an expired anonymous session. Expired authenticated sessions are returned as is so the
// guard can report them. Fresh sessions are not stored until something is written to them.
func (s *Service) LoadSession(ctx context.Context, id string) (*sessions.Session, error) {
	now := s.nowTime()
	if id != "" {
		sess, err := s.uow.Repos().Sessions.Get(ctx, id)
		switch {
		case err == nil:
			if sess.IsAuthenticated() || !sess.Expired(now) {
				return sess, nil
			}
		case !apperrors.Is(err, apperrors.ErrSessionNotFound):
			return nil, fmt.Errorf("[Service.LoadSession] sessions.Get: %w", err)
		}
	}
	return sessions.New(now, s.settings.SessionMaxAge)
}

// CSRFToken returns the session's live token, issuing and storing one if needed
func (s *Service) CSRFToken(ctx context.Context, sess *sessions.Session) (string, error) {
	token, issued, err := s.csrf.IssueOrGet(sess)
	if err != nil {
		return "", fmt.Errorf("[Service.CSRFToken] %w", err)
	}
	if issued {
		if err := s.uow.Repos().Sessions.Upsert(ctx, sess); err != nil {
			return "", fmt.Errorf("[Service.CSRFToken] sessions.Upsert: %w", err)
		}
	}
	return token, nil
}

// RequireCSRF rejects a state-changing request whose presented token is not the session's live one
func (s *Service) RequireCSRF(sess *sessions.Session, presented string) error {
	if s.csrf.Validate(sess, presented) {
		return nil
	}
	metrics.CSRFRejections.Inc()
	log.Warn().Bool("tokenPresented", presented != "").Str("accountID", sess.AccountID).Msg("csrf token rejected")
	return errCSRF()
}

// EstablishSession binds a successfully verified account to the caller. The old session record is
// discarded and sess is given a new identifier, a long-lived expiry and a rotated CSRF token.
func (s *Service) EstablishSession(ctx context.Context, sess *sessions.Session, account *users.User) error {
	if account == nil {
		return errors.New("[Service.EstablishSession] account is required")
	}
	now := s.nowTime()

	id, err := sessions.NewID()
	if err != nil {
		return err
	}
	oldID := sess.ID

	sess.Clear()
	sess.ID = id
	sess.AccountID = account.ID
	sess.Role = account.Role
	sess.LongLived = true
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.settings.LongLivedAge)
	if _, err := s.csrf.Rotate(sess); err != nil {
		return fmt.Errorf("[Service.EstablishSession] %w", err)
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repos) error {
		if oldID != "" {
			if err := repos.Sessions.Delete(ctx, oldID); err != nil {
				return err
			}
		}
		return repos.Sessions.Upsert(ctx, sess)
	})
	if err != nil {
		return fmt.Errorf("[Service.EstablishSession] %w", err)
	}

	log.Info().Str("accountID", account.ID).Str("role", string(account.Role)).Msg("session established")
	return nil
}

// GuardSession re-checks sess against the account's committed state. On invalidation the stored
// record is dropped, sess is cleared and given a new identifier, and a KindSessionInvalidated
// error names the login route for the role the session last held.
func (s *Service) GuardSession(ctx context.Context, sess *sessions.Session) error {
	now := s.nowTime()
	res, err := s.guard.Check(ctx, s.uow.Repos().Users, sess, now)
	if err != nil {
		return fmt.Errorf("[Service.GuardSession] %w", err)
	}
	if res.Valid {
		return nil
	}

	if err := s.uow.Repos().Sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("[Service.GuardSession] sessions.Delete: %w", err)
	}
	id, err := sessions.NewID()
	if err != nil {
		return err
	}
	sess.ID = id
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.settings.SessionMaxAge)

	metrics.SessionInvalidations.WithLabelValues(string(res.Reason)).Inc()
	log.Warn().Str("reason", string(res.Reason)).Str("previousRole", string(res.PreviousRole)).Msg("session invalidated")
	return errSessionInvalidated(res)
}

// RequireRole rejects anonymous sessions and sessions holding a different role
func (s *Service) RequireRole(sess *sessions.Session, role users.RoleType) error {
	if !sess.IsAuthenticated() || sess.Role != role {
		log.Warn().Str("accountID", sess.AccountID).Str("required", string(role)).Msg("unauthorized")
		return errUnauthorized(LoginRouteFor(role))
	}
	return nil
}

// LogAdminAction records an action taken by the admin owning sess. repos must belong to the
// transaction performing the action so both commit or neither does.
func (s *Service) LogAdminAction(ctx context.Context, repos store.Repos, sess *sessions.Session, action audit.Action, targetID *string, detail map[string]any) (*audit.Entry, error) {
	if err := s.RequireRole(sess, users.RoleAdmin); err != nil {
		return nil, err
	}
	return s.audit.Append(ctx, repos.Audit, sess.AccountID, action, targetID, detail)
}

// Logout drops the stored session and leaves sess empty under a new identifier
func (s *Service) Logout(ctx context.Context, sess *sessions.Session) error {
	if err := s.uow.Repos().Sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("[Service.Logout] sessions.Delete: %w", err)
	}
	accountID := sess.AccountID
	id, err := sessions.NewID()
	if err != nil {
		return err
	}
	now := s.nowTime()
	sess.Clear()
	sess.ID = id
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.settings.SessionMaxAge)

	log.Info().Str("accountID", accountID).Msg("logged out")
	return nil
}

// CurrentAccount loads the account bound to an authenticated session
func (s *Service) CurrentAccount(ctx context.Context, sess *sessions.Session) (*users.User, error) {
	if !sess.IsAuthenticated() {
		return nil, errUnauthorized(UserLoginRoute)
	}
	return s.uow.Repos().Users.GetByID(ctx, sess.AccountID)
}

// PurgeExpiredSessions deletes every session whose expiry has passed
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.uow.Repos().Sessions.DeleteExpired(ctx, s.nowTime())
	if err != nil {
		return 0, fmt.Errorf("[Service.PurgeExpiredSessions] %w", err)
	}
	metrics.ExpiredSessionsPurged.Add(float64(n))
	return n, nil
}
