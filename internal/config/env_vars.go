package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	portEnvVar  = "PORT"
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	logLevelVar = "LOG_LEVEL"

	envDev = "DEV"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.GetString(portEnvVar)
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameVar)
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.v.GetString(envVar))
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.v.GetString(logLevelVar))
}
