package client

import (
	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/internal/config"
	"github.com/pkg/errors"
)

var resources = []string{
	config.MotorcyclesResource,
	config.PartsResource,
	config.PartCategoriesResource,
	config.BlogResource,
	config.BlogCategoriesResource,
	config.GarageSettingsResource,
	config.AdminsResource,
}

// loadPolicies builds and validates the read policy of every resource.
func loadPolicies(cfg config.CacheConfig) (map[string]cache.Policy, error) {
	policies := make(map[string]cache.Policy, len(resources))
	for _, name := range resources {
		raw := cfg.GetCachePolicy(name)
		p, err := cache.NewPolicy(raw.StaleTime, raw.MaxRetries, raw.RetryDelay, raw.RetryOn)
		if err != nil {
			return nil, errors.Wrapf(err, "[client.loadPolicies] %s", name)
		}
		policies[name] = p
	}
	return policies, nil
}
