package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	DatabaseConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Cors
	Security
	Database
}

var defaults = map[string]any{
	portEnvVar:          "8080",
	appNameVar:          "FitTrack",
	envVar:              envDev,
	logLevelVar:         "info",
	allowedOriginsVar:   "",
	lockoutThresholdVar: 5,
	lockoutDurationVar:  15 * time.Minute,
	sessionMaxAgeVar:    30 * time.Minute,
	longLivedAgeVar:     30 * 24 * time.Hour,
	adminUsernameVar:    "FitAdmin",
	adminEmailVar:       "admin@fittrack.com",
	adminPasswordVar:    "",
	loginRateVar:        20,
	trustedProxyVar:     false,
	databaseDriverVar:   DriverMemory,
	databaseURLVar:      "",
}

// New builds the configuration from environment variables, falling back to defaults.
func New() Config {
	return NewWithOverrides(nil)
}

// NewWithOverrides is New with explicit values taking precedence over the environment.
func NewWithOverrides(overrides map[string]any) Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	return mainConfig{
		EnvVars:  EnvVars{v: v},
		Cors:     Cors{v: v},
		Security: Security{v: v},
		Database: Database{v: v},
	}
}

// Validate rejects settings that are only safe for local development
func Validate(c Config) error {
	if strings.EqualFold(c.GetEnv(), envDev) {
		return nil
	}
	if c.GetDatabaseDriver() == DriverMemory {
		return fmt.Errorf("[config.Validate] %s=%s requires a persistent %s, got %q", envVar, c.GetEnv(), databaseDriverVar, DriverMemory)
	}
	return nil
}
