package config

import (
	"os"

	"github.com/spf13/viper"
)

const (
	appNameKey  = "app.name"
	logLevelKey = "log.level"
	envVar      = "ENV"
)

type EnvConfig interface {
	GetAppName() string
	GetLogLevel() string
	GetEnv() string
}

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func setEnvDefaults(v *viper.Viper) {
	v.SetDefault(appNameKey, "Moto Client")
	v.SetDefault(logLevelKey, "info")
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameKey)
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelKey)
}

// GetEnv returns the deployment environment, read from the unprefixed ENV variable.
func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
