package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	baseURLKey           = "api.base_url"
	timeoutKey           = "api.timeout"
	uploadTimeoutKey     = "api.upload_timeout"
	versionConstraintKey = "api.version_constraint"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetUploadTimeout() time.Duration
	GetVersionConstraint() string
}

type API struct {
	v *viper.Viper
}

var _ APIConfig = API{}

func setAPIDefaults(v *viper.Viper) {
	v.SetDefault(baseURLKey, "http://localhost:8000/api")
	v.SetDefault(timeoutKey, 10*time.Second)
	v.SetDefault(uploadTimeoutKey, time.Duration(0))
	v.SetDefault(versionConstraintKey, "^1.0.0")
}

// GetAPIBaseURL returns the API root without a trailing slash (e.g. "https://moto.example.com/api")
func (a API) GetAPIBaseURL() string {
	return strings.TrimSuffix(a.v.GetString(baseURLKey), "/")
}

func (a API) GetRequestTimeout() time.Duration {
	return a.v.GetDuration(timeoutKey)
}

// GetUploadTimeout returns the timeout for multipart uploads. Zero means no timeout.
func (a API) GetUploadTimeout() time.Duration {
	return a.v.GetDuration(uploadTimeoutKey)
}

func (a API) GetVersionConstraint() string {
	return a.v.GetString(versionConstraintKey)
}
