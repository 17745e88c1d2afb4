package cache

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jrsteele09/go-moto-client/apierror"
	ierrors "github.com/jrsteele09/go-moto-client/internal/errors"
	"github.com/jrsteele09/go-moto-client/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of a cache entry.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Fetcher loads the value for a key from the API.
type Fetcher[T any] func(ctx context.Context) (T, error)

// FetchError reports a failed read. When HasStale is set the read also returned the last known
// good value for the key.
type FetchError struct {
	Key      Key
	Attempts int
	HasStale bool
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Key, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type entry struct {
	key         Key
	value       any
	hasValue    bool
	fetchedAt   time.Time
	staleTime   time.Duration
	state       State
	err         error
	retryCount  int
	issued      uint64 // sequence number of the most recently issued fetch
	invalidated bool
}

// Cache is the process-wide store of fetched resources. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	flights singleflight.Group
	nowFunc func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

type CacheOption func(*Cache)

func WithNowFunc(nowFunc func() time.Time) CacheOption {
	return func(c *Cache) {
		c.nowFunc = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

func New(options ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	return c
}

// Read returns the cached value for key while it is fresh under policy, and otherwise fetches
// it. Concurrent reads of the same key share one fetch. On failure the returned error is a
// *FetchError and the returned value is the last known good value, if any.
func Read[T any](ctx context.Context, c *Cache, key Key, fetch Fetcher[T], policy Policy) (T, error) {
	if v, ok := c.fresh(key, policy); ok {
		c.metrics.CacheRead("hit")
		return cast[T](key, v)
	}
	c.metrics.CacheRead("miss")
	return load(ctx, c, key, fetch, policy, false)
}

// Refetch fetches key regardless of freshness. A fetch already in flight for key is superseded:
// its result is still returned to its own callers but is not applied to the cache.
func Refetch[T any](ctx context.Context, c *Cache, key Key, fetch Fetcher[T], policy Policy) (T, error) {
	c.flights.Forget(key.id())
	return load(ctx, c, key, fetch, policy, true)
}

func load[T any](ctx context.Context, c *Cache, key Key, fetch Fetcher[T], policy Policy, force bool) (T, error) {
	ch := c.flights.DoChan(key.id(), func() (any, error) {
		// Another flight may have completed between the freshness check and joining the group.
		if v, ok := c.fresh(key, policy); ok && !force {
			return v, nil
		}
		// The fetch is shared, so one caller giving up must not cancel it for the others.
		return c.fetch(context.WithoutCancel(ctx), key, policy, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		})
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		v, err := cast[T](key, res.Val)
		if res.Err != nil {
			return v, res.Err
		}
		return v, err
	}
}

func (c *Cache) fetch(ctx context.Context, key Key, policy Policy, fn func(context.Context) (any, error)) (any, error) {
	seq := c.begin(key)

	attempts := 0
	operation := func() (any, error) {
		attempts++
		v, err := fn(ctx)
		if err != nil && !policy.retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return v, err
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.RetryDelay), uint64(policy.MaxRetries))
	v, err := backoff.RetryNotifyWithData(operation, b, func(err error, next time.Duration) {
		c.logger.Debug().Str("key", key.String()).Int("attempt", attempts).Str("kind", string(apierror.KindOf(err))).
			Dur("retry_in", next).Msg("fetch failed, retrying")
	})
	return c.settle(key, seq, policy, v, err, attempts)
}

// begin records a newly issued fetch for key and returns its sequence number.
func (c *Cache) begin(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	c.seq++
	e.issued = c.seq
	e.state = StateLoading
	return e.issued
}

// settle applies a fetch result unless the fetch was superseded, invalidated or cleared since
// it was issued.
func (c *Cache) settle(key Key, seq uint64, policy Policy, v any, err error, attempts int) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id()]
	if !ok || e.issued != seq {
		c.metrics.CacheFetch("discarded")
		c.logger.Debug().Str("key", key.String()).Uint64("seq", seq).Msg("discarding superseded fetch result")
		if err != nil {
			fe := &FetchError{Key: key, Attempts: attempts, Err: err}
			if ok && e.hasValue {
				fe.HasStale = true
				return e.value, fe
			}
			return nil, fe
		}
		return v, nil
	}

	e.retryCount = attempts - 1
	if err == nil {
		e.value, e.hasValue, e.err = v, true, nil
		e.fetchedAt = c.nowFunc()
		e.staleTime = policy.StaleTime
		e.state = StateSuccess
		e.invalidated = false
		c.metrics.CacheFetch("applied")
		return v, nil
	}

	e.state = StateError
	e.err = err
	c.metrics.CacheFetch("failed")
	c.logger.Debug().Str("key", key.String()).Int("attempts", attempts).Err(err).Msg("fetch failed")
	fe := &FetchError{Key: key, Attempts: attempts, HasStale: e.hasValue, Err: err}
	if e.hasValue {
		return e.value, fe
	}
	return nil, fe
}

func (c *Cache) fresh(key Key, policy Policy) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok || e.state != StateSuccess || e.invalidated {
		return nil, false
	}
	if c.nowFunc().Sub(e.fetchedAt) >= policy.StaleTime {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) entryLocked(key Key) *entry {
	id := key.id()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...), state: StateIdle}
		c.entries[id] = e
	}
	return e
}

// Invalidate marks every entry whose key starts with one of prefixes as stale, so the next read
// fetches it. Fetches in flight for those keys will not be applied.
func (c *Cache) Invalidate(prefixes ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		for _, prefix := range prefixes {
			if !e.key.HasPrefix(prefix) {
				continue
			}
			e.invalidated = true
			c.seq++
			e.issued = c.seq
			if e.state == StateLoading {
				e.state = stateAfterLoad(e)
			}
			c.flights.Forget(id)
			c.logger.Debug().Str("key", e.key.String()).Msg("invalidated")
			break
		}
	}
}

// Remove drops every entry whose key starts with one of prefixes, value included. Fetches in
// flight for those keys complete but are not applied.
func (c *Cache) Remove(prefixes ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		for _, prefix := range prefixes {
			if e.key.HasPrefix(prefix) {
				delete(c.entries, id)
				c.flights.Forget(id)
				break
			}
		}
	}
}

// Clear drops every entry. Fetches in flight complete but are not applied.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.entries {
		c.flights.Forget(id)
	}
	c.entries = make(map[string]*entry)
}

// Snapshot is a point in time view of one entry.
type Snapshot struct {
	Key        Key
	State      State
	Value      any
	HasValue   bool
	FetchedAt  time.Time
	Err        error
	ErrorKind  apierror.Kind
	RetryCount int
	// Stale is set when the value is older than its stale time, invalidated, or kept after a
	// failed fetch.
	Stale bool
}

// Lookup returns the current state of key without fetching.
func (c *Cache) Lookup(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok {
		return Snapshot{Key: key, State: StateIdle}
	}
	s := Snapshot{
		Key:        key,
		State:      e.state,
		Value:      detach(e.value),
		HasValue:   e.hasValue,
		FetchedAt:  e.fetchedAt,
		Err:        e.err,
		ErrorKind:  apierror.KindOf(e.err),
		RetryCount: e.retryCount,
	}
	s.Stale = e.hasValue && (e.invalidated || e.state == StateError || c.nowFunc().Sub(e.fetchedAt) >= e.staleTime)
	return s
}

// stateAfterLoad is the state an entry falls back to when its only fetch is abandoned.
func stateAfterLoad(e *entry) State {
	switch {
	case e.err != nil:
		return StateError
	case e.hasValue:
		return StateSuccess
	default:
		return StateIdle
	}
}

func cast[T any](key Key, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := detach(v).(T)
	if !ok {
		return zero, errors.Wrapf(ierrors.ErrTypeMismatch, "key %s holds %T", key, v)
	}
	return t, nil
}

// detach gives a top-level slice value its own backing array so callers can edit or append to
// it without touching the cached copy. Anything reachable through pointers stays shared.
func detach(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return v
	}
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(out, rv)
	return out.Interface()
}
