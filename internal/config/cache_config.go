package config

import (
	"time"

	"github.com/spf13/viper"
)

const defaultResource = "default"

// Resource names used as cache policy sections.
const (
	MotorcyclesResource    = "motorcycles"
	PartsResource          = "parts"
	PartCategoriesResource = "part-categories"
	BlogResource           = "blog"
	BlogCategoriesResource = "blog-categories"
	GarageSettingsResource = "garage-settings"
	AdminsResource         = "admins"
)

// CachePolicy is the raw read policy for one resource.
type CachePolicy struct {
	StaleTime  time.Duration
	MaxRetries int
	RetryDelay time.Duration
	RetryOn    []string
}

type CacheConfig interface {
	GetCachePolicy(resource string) CachePolicy
}

type Cache struct {
	v *viper.Viper
}

var _ CacheConfig = Cache{}

func setCacheDefaults(v *viper.Viper) {
	v.SetDefault("cache.default.stale_time", 5*time.Minute)
	v.SetDefault("cache.default.max_retries", 1)
	v.SetDefault("cache.default.retry_delay", 5*time.Second)
	v.SetDefault("cache.default.retry_on", []string{"unknown"})

	v.SetDefault("cache.part-categories.stale_time", 10*time.Minute)
	v.SetDefault("cache.part-categories.max_retries", 2)
	v.SetDefault("cache.blog-categories.stale_time", 10*time.Minute)
	v.SetDefault("cache.garage-settings.stale_time", 10*time.Minute)
	v.SetDefault("cache.admins.stale_time", time.Duration(0))
	v.SetDefault("cache.admins.max_retries", 0)
}

// GetCachePolicy returns the policy for resource, falling back field by field to cache.default.
func (c Cache) GetCachePolicy(resource string) CachePolicy {
	return CachePolicy{
		StaleTime:  c.v.GetDuration(c.key(resource, "stale_time")),
		MaxRetries: c.v.GetInt(c.key(resource, "max_retries")),
		RetryDelay: c.v.GetDuration(c.key(resource, "retry_delay")),
		RetryOn:    c.v.GetStringSlice(c.key(resource, "retry_on")),
	}
}

func (c Cache) key(resource, field string) string {
	k := "cache." + resource + "." + field
	if resource != defaultResource && c.v.IsSet(k) {
		return k
	}
	return "cache." + defaultResource + "." + field
}
