package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	lockoutThresholdVar = "LOCKOUT_THRESHOLD"
	lockoutDurationVar  = "LOCKOUT_DURATION"
	sessionMaxAgeVar    = "SESSION_MAX_AGE"
	longLivedAgeVar     = "SESSION_LONG_LIVED_AGE"
	adminUsernameVar    = "ADMIN_USERNAME"
	adminEmailVar       = "ADMIN_EMAIL"
	adminPasswordVar    = "ADMIN_PASSWORD"
	loginRateVar        = "LOGIN_RATE_PER_MINUTE"
	trustedProxyVar     = "TRUSTED_PROXY"
)

type SecurityConfig interface {
	GetLockoutThreshold() int
	GetLockoutDuration() time.Duration
	GetMaxSessionAge() time.Duration
	GetLongLivedSessionAge() time.Duration
	GetAdminUsername() string
	GetAdminEmail() string
	GetAdminPassword() string
	GetLoginRatePerMinute() int
	GetSecureCookies() bool
	GetTrustProxyHeaders() bool
}

type Security struct {
	v *viper.Viper
}

var _ SecurityConfig = Security{}

// GetLockoutThreshold is the number of consecutive failures that locks an account
func (s Security) GetLockoutThreshold() int {
	if n := s.v.GetInt(lockoutThresholdVar); n > 0 {
		return n
	}
	return 5
}

func (s Security) GetLockoutDuration() time.Duration {
	if d := s.v.GetDuration(lockoutDurationVar); d > 0 {
		return d
	}
	return 15 * time.Minute
}

// GetMaxSessionAge bounds anonymous (pre-login) sessions
func (s Security) GetMaxSessionAge() time.Duration {
	return s.v.GetDuration(sessionMaxAgeVar)
}

// GetLongLivedSessionAge bounds sessions established by a successful login
func (s Security) GetLongLivedSessionAge() time.Duration {
	return s.v.GetDuration(longLivedAgeVar)
}

func (s Security) GetAdminUsername() string {
	return s.v.GetString(adminUsernameVar)
}

func (s Security) GetAdminEmail() string {
	return s.v.GetString(adminEmailVar)
}

// GetAdminPassword seeds the bootstrapped admin. Empty means generate one.
func (s Security) GetAdminPassword() string {
	return s.v.GetString(adminPasswordVar)
}

func (s Security) GetLoginRatePerMinute() int {
	return s.v.GetInt(loginRateVar)
}

// GetSecureCookies is true everywhere except local development
func (s Security) GetSecureCookies() bool {
	return !strings.EqualFold(s.v.GetString(envVar), envDev)
}

// GetTrustProxyHeaders allows X-Forwarded-For and X-Real-IP to replace the peer address
func (s Security) GetTrustProxyHeaders() bool {
	return s.v.GetBool(trustedProxyVar)
}
