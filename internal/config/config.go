package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "MOTO"

type Config interface {
	EnvConfig
	APIConfig
	CacheConfig
	StorageConfig
}

type mainConfig struct {
	EnvVars
	API
	Cache
	Storage
}

// New returns a configuration built from defaults and MOTO_* environment variables.
func New() Config {
	return newMainConfig(newViper())
}

// Load reads the configuration file at path (yaml, json or toml) on top of the defaults.
// Environment variables still take precedence over values from the file.
func Load(path string) (Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return newMainConfig(v), nil
}

func newMainConfig(v *viper.Viper) mainConfig {
	return mainConfig{
		EnvVars: EnvVars{v: v},
		API:     API{v: v},
		Cache:   Cache{v: v},
		Storage: Storage{v: v},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	setEnvDefaults(v)
	setAPIDefaults(v)
	setCacheDefaults(v)
	setStorageDefaults(v)

	// api.base_url -> MOTO_API_BASE_URL, cache.part-categories.max_retries -> MOTO_CACHE_PART_CATEGORIES_MAX_RETRIES
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}
