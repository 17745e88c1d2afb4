package cache

import (
	"slices"
	"time"

	"github.com/jrsteele09/go-moto-client/apierror"
	ierrors "github.com/jrsteele09/go-moto-client/internal/errors"
	"github.com/pkg/errors"
)

// Policy controls freshness and retries for the reads of one resource.
type Policy struct {
	// StaleTime is how long a successful value is served without a network call.
	StaleTime time.Duration
	// MaxRetries bounds the extra attempts after a failed fetch.
	MaxRetries int
	// RetryDelay separates attempts. The delay is constant.
	RetryDelay time.Duration
	// RetryOn lists the error kinds worth another attempt.
	RetryOn []apierror.Kind
}

// DefaultPolicy serves values for five minutes and retries an unclassified failure once.
func DefaultPolicy() Policy {
	return Policy{
		StaleTime:  5 * time.Minute,
		MaxRetries: 1,
		RetryDelay: 5 * time.Second,
		RetryOn:    []apierror.Kind{apierror.Unknown},
	}
}

// NewPolicy builds a validated policy from configuration values.
func NewPolicy(staleTime time.Duration, maxRetries int, retryDelay time.Duration, retryOn []string) (Policy, error) {
	p := Policy{StaleTime: staleTime, MaxRetries: maxRetries, RetryDelay: retryDelay}
	for _, s := range retryOn {
		kind, err := apierror.ParseKind(s)
		if err != nil {
			return Policy{}, errors.Wrap(ierrors.ErrInvalidPolicy, err.Error())
		}
		p.RetryOn = append(p.RetryOn, kind)
	}
	return p, p.Validate()
}

// Validate rejects negative durations and counts, unknown kinds, and any policy that would
// retry ServiceUnavailable: a backend that is down must fail fast.
func (p Policy) Validate() error {
	if p.StaleTime < 0 {
		return errors.Wrap(ierrors.ErrInvalidPolicy, "stale time is negative")
	}
	if p.MaxRetries < 0 {
		return errors.Wrap(ierrors.ErrInvalidPolicy, "max retries is negative")
	}
	if p.RetryDelay < 0 {
		return errors.Wrap(ierrors.ErrInvalidPolicy, "retry delay is negative")
	}
	for _, kind := range p.RetryOn {
		if kind == apierror.ServiceUnavailable {
			return errors.Wrapf(ierrors.ErrInvalidPolicy, "%s cannot be retried", kind)
		}
		if _, err := apierror.ParseKind(string(kind)); err != nil {
			return errors.Wrap(ierrors.ErrInvalidPolicy, err.Error())
		}
	}
	return nil
}

func (p Policy) retryable(err error) bool {
	kind := apierror.KindOf(err)
	if kind == apierror.ServiceUnavailable {
		return false
	}
	return slices.Contains(p.RetryOn, kind)
}
