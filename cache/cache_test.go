package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-moto-client/apierror"
	"github.com/jrsteele09/go-moto-client/cache"
	ierrors "github.com/jrsteele09/go-moto-client/internal/errors"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	clock *testClock
	cache *cache.Cache
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)}
	return &testFixture{clock: clock, cache: cache.New(cache.WithNowFunc(clock.Now))}
}

var (
	motorcyclesKey = cache.Key{"motorcycles"}
	featuredKey    = cache.Key{"motorcycles", "featured"}
	motorcycle42   = cache.Key{"motorcycle", "42"}
)

func policy(stale time.Duration, retries int, retryOn ...apierror.Kind) cache.Policy {
	return cache.Policy{StaleTime: stale, MaxRetries: retries, RetryDelay: time.Millisecond, RetryOn: retryOn}
}

// counting returns a fetcher that counts its calls and returns the results in order,
// repeating the last one.
func counting[T any](calls *atomic.Int32, results ...func() (T, error)) cache.Fetcher[T] {
	return func(context.Context) (T, error) {
		n := int(calls.Add(1))
		if n > len(results) {
			n = len(results)
		}
		return results[n-1]()
	}
}

func ok[T any](v T) func() (T, error) {
	return func() (T, error) { return v, nil }
}

func fail[T any](kind apierror.Kind) func() (T, error) {
	return func() (T, error) {
		var zero T
		return zero, &apierror.Error{Kind: kind}
	}
}

func TestConcurrentReadsShareOneFetch(t *testing.T) {
	f := setupTestFixture(t)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "payload", nil
	}

	const readers = 20
	var wg sync.WaitGroup
	results := make([]string, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Read(context.Background(), f.cache, motorcycle42, fetch, policy(time.Minute, 0))
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for _, v := range results {
		require.Equal(t, "payload", v)
	}
}

func TestStaleness(t *testing.T) {
	f := setupTestFixture(t)
	var calls atomic.Int32
	fetch := counting(&calls, ok("v1"), ok("v2"))
	p := policy(5*time.Minute, 0)
	ctx := context.Background()

	v, err := cache.Read(ctx, f.cache, motorcycle42, fetch, p)
	require.NoError(t, err)
	require.Equal(t, "v1", v)

	f.clock.Advance(5*time.Minute - time.Millisecond)
	v, err = cache.Read(ctx, f.cache, motorcycle42, fetch, p)
	require.NoError(t, err)
	require.Equal(t, "v1", v)
	require.EqualValues(t, 1, calls.Load())

	f.clock.Advance(2 * time.Millisecond)
	v, err = cache.Read(ctx, f.cache, motorcycle42, fetch, p)
	require.NoError(t, err)
	require.Equal(t, "v2", v)
	require.EqualValues(t, 2, calls.Load())
}

func TestZeroStaleTimeAlwaysFetches(t *testing.T) {
	f := setupTestFixture(t)
	var calls atomic.Int32
	fetch := counting(&calls, ok(1))
	for i := 0; i < 3; i++ {
		_, err := cache.Read(context.Background(), f.cache, cache.Key{"admins"}, fetch, policy(0, 0))
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, calls.Load())
}

func TestServiceUnavailableIsNeverRetried(t *testing.T) {
	tests := []struct {
		name   string
		policy cache.Policy
	}{
		{"default kinds", policy(time.Minute, 5, apierror.Unknown)},
		{"listed anyway", policy(time.Minute, 5, apierror.ServiceUnavailable, apierror.Unknown)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			var calls atomic.Int32

			_, err := cache.Read(context.Background(), f.cache, motorcyclesKey, counting(&calls, fail[[]string](apierror.ServiceUnavailable)), tt.policy)
			require.Equal(t, apierror.ServiceUnavailable, apierror.KindOf(err))
			require.EqualValues(t, 1, calls.Load())

			var fe *cache.FetchError
			require.True(t, errors.As(err, &fe))
			require.Equal(t, 1, fe.Attempts)
			require.False(t, fe.HasStale)
		})
	}
}

func TestRetryBound(t *testing.T) {
	t.Run("gives up after max retries", func(t *testing.T) {
		f := setupTestFixture(t)
		var calls atomic.Int32

		_, err := cache.Read(context.Background(), f.cache, motorcyclesKey, counting(&calls, fail[string](apierror.Unknown)), policy(time.Minute, 3, apierror.Unknown))
		require.Equal(t, apierror.Unknown, apierror.KindOf(err))
		require.EqualValues(t, 4, calls.Load())
		require.Equal(t, 3, f.cache.Lookup(motorcyclesKey).RetryCount)
	})

	t.Run("recovers on retry", func(t *testing.T) {
		f := setupTestFixture(t)
		var calls atomic.Int32

		v, err := cache.Read(context.Background(), f.cache, motorcyclesKey, counting(&calls, fail[string](apierror.Unknown), ok("list")), policy(time.Minute, 3, apierror.Unknown))
		require.NoError(t, err)
		require.Equal(t, "list", v)
		require.EqualValues(t, 2, calls.Load())
		require.Equal(t, 1, f.cache.Lookup(motorcyclesKey).RetryCount)
	})

	t.Run("kind not listed", func(t *testing.T) {
		f := setupTestFixture(t)
		var calls atomic.Int32

		_, err := cache.Read(context.Background(), f.cache, motorcycle42, counting(&calls, fail[string](apierror.NotFound)), policy(time.Minute, 3, apierror.Unknown))
		require.Equal(t, apierror.NotFound, apierror.KindOf(err))
		require.EqualValues(t, 1, calls.Load())
	})
}

func TestLastIssuedFetchWins(t *testing.T) {
	f := setupTestFixture(t)
	p := policy(time.Minute, 0)
	aRelease, bRelease := make(chan struct{}), make(chan struct{})
	var aStarted, bStarted atomic.Bool

	fetchA := func(context.Context) (string, error) {
		aStarted.Store(true)
		<-aRelease
		return "A", nil
	}
	fetchB := func(context.Context) (string, error) {
		bStarted.Store(true)
		<-bRelease
		return "B", nil
	}

	aDone := make(chan string, 1)
	go func() {
		v, _ := cache.Read(context.Background(), f.cache, motorcycle42, fetchA, p)
		aDone <- v
	}()
	require.Eventually(t, aStarted.Load, time.Second, time.Millisecond)

	bDone := make(chan string, 1)
	go func() {
		v, _ := cache.Refetch(context.Background(), f.cache, motorcycle42, fetchB, p)
		bDone <- v
	}()
	require.Eventually(t, bStarted.Load, time.Second, time.Millisecond)

	close(bRelease)
	require.Equal(t, "B", <-bDone)
	close(aRelease)
	require.Equal(t, "A", <-aDone)

	snap := f.cache.Lookup(motorcycle42)
	require.Equal(t, cache.StateSuccess, snap.State)
	require.Equal(t, "B", snap.Value)

	var calls atomic.Int32
	v, err := cache.Read(context.Background(), f.cache, motorcycle42, counting(&calls, ok("C")), p)
	require.NoError(t, err)
	require.Equal(t, "B", v)
	require.Zero(t, calls.Load())
}

func TestStaleWhileError(t *testing.T) {
	f := setupTestFixture(t)
	var calls atomic.Int32
	fetch := counting(&calls, ok([]string{"a", "b"}), fail[[]string](apierror.ServiceUnavailable))
	p := policy(time.Minute, 0)

	_, err := cache.Read(context.Background(), f.cache, motorcyclesKey, fetch, p)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	v, err := cache.Read(context.Background(), f.cache, motorcyclesKey, fetch, p)
	require.Equal(t, []string{"a", "b"}, v)
	var fe *cache.FetchError
	require.True(t, errors.As(err, &fe))
	require.True(t, fe.HasStale)
	require.Equal(t, apierror.ServiceUnavailable, apierror.KindOf(err))

	snap := f.cache.Lookup(motorcyclesKey)
	require.Equal(t, cache.StateError, snap.State)
	require.True(t, snap.HasValue)
	require.True(t, snap.Stale)
	require.Equal(t, apierror.ServiceUnavailable, snap.ErrorKind)
	require.Equal(t, []string{"a", "b"}, snap.Value)
}

func TestEmptyCollectionIsSuccess(t *testing.T) {
	f := setupTestFixture(t)
	var calls atomic.Int32

	v, err := cache.Read(context.Background(), f.cache, motorcyclesKey, counting(&calls, ok([]string{})), policy(time.Minute, 0))
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Empty(t, v)

	snap := f.cache.Lookup(motorcyclesKey)
	require.Equal(t, cache.StateSuccess, snap.State)
	require.True(t, snap.HasValue)
	require.NoError(t, snap.Err)
}

func TestReadReturnsDetachedSlice(t *testing.T) {
	f := setupTestFixture(t)
	var calls atomic.Int32
	items := make([]string, 2, 8)
	copy(items, []string{"Bonneville", "Scrambler"})
	fetch := counting(&calls, ok(items))

	first, err := cache.Read(context.Background(), f.cache, motorcyclesKey, fetch, policy(time.Minute, 0))
	require.NoError(t, err)
	first[0] = "edited"
	first = append(first, "appended")
	require.Len(t, first, 3)

	second, err := cache.Read(context.Background(), f.cache, motorcyclesKey, fetch, policy(time.Minute, 0))
	require.NoError(t, err)
	require.Equal(t, []string{"Bonneville", "Scrambler"}, second)
	require.EqualValues(t, 1, calls.Load())

	snap := f.cache.Lookup(motorcyclesKey)
	snap.Value.([]string)[1] = "edited"
	require.Equal(t, []string{"Bonneville", "Scrambler"}, f.cache.Lookup(motorcyclesKey).Value)
}

func TestInvalidate(t *testing.T) {
	f := setupTestFixture(t)
	p := policy(5*time.Minute, 0)
	counts := map[string]*atomic.Int32{}
	read := func(key cache.Key) {
		t.Helper()
		c, found := counts[key.String()]
		if !found {
			c = &atomic.Int32{}
			counts[key.String()] = c
		}
		_, err := cache.Read(context.Background(), f.cache, key, counting(c, ok(key.String())), p)
		require.NoError(t, err)
	}

	for _, key := range []cache.Key{motorcyclesKey, featuredKey, motorcycle42, {"part", "42"}} {
		read(key)
	}
	f.cache.Invalidate(motorcyclesKey, motorcycle42)

	require.True(t, f.cache.Lookup(featuredKey).Stale)
	require.False(t, f.cache.Lookup(cache.Key{"part", "42"}).Stale)

	for _, key := range []cache.Key{motorcyclesKey, featuredKey, motorcycle42, {"part", "42"}} {
		read(key)
	}
	require.EqualValues(t, 2, counts["motorcycles"].Load())
	require.EqualValues(t, 2, counts["motorcycles/featured"].Load())
	require.EqualValues(t, 2, counts["motorcycle/42"].Load())
	require.EqualValues(t, 1, counts["part/42"].Load())
}

func TestInvalidateDuringFetchDiscardsResult(t *testing.T) {
	f := setupTestFixture(t)
	p := policy(5*time.Minute, 0)
	release := make(chan struct{})
	var started atomic.Bool

	done := make(chan string, 1)
	go func() {
		v, _ := cache.Read(context.Background(), f.cache, motorcycle42, func(context.Context) (string, error) {
			started.Store(true)
			<-release
			return "before-update", nil
		}, p)
		done <- v
	}()
	require.Eventually(t, started.Load, time.Second, time.Millisecond)

	f.cache.Invalidate(motorcycle42)
	close(release)
	require.Equal(t, "before-update", <-done)
	require.False(t, f.cache.Lookup(motorcycle42).HasValue)

	var calls atomic.Int32
	v, err := cache.Read(context.Background(), f.cache, motorcycle42, counting(&calls, ok("after-update")), p)
	require.NoError(t, err)
	require.Equal(t, "after-update", v)
	require.EqualValues(t, 1, calls.Load())
}

func TestCallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	f := setupTestFixture(t)
	release := make(chan struct{})
	var started atomic.Bool
	fetch := func(ctx context.Context) (string, error) {
		started.Store(true)
		<-release
		return "done", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := cache.Read(ctx, f.cache, motorcycle42, fetch, policy(time.Minute, 0))
		errCh <- err
	}()
	require.Eventually(t, started.Load, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		return f.cache.Lookup(motorcycle42).State == cache.StateSuccess
	}, time.Second, time.Millisecond)
}

func TestClear(t *testing.T) {
	f := setupTestFixture(t)
	var calls atomic.Int32
	fetch := counting(&calls, ok("v"))
	_, err := cache.Read(context.Background(), f.cache, motorcycle42, fetch, policy(time.Minute, 0))
	require.NoError(t, err)

	f.cache.Clear()
	require.Equal(t, cache.StateIdle, f.cache.Lookup(motorcycle42).State)

	_, err = cache.Read(context.Background(), f.cache, motorcycle42, fetch, policy(time.Minute, 0))
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestRemove(t *testing.T) {
	f := setupTestFixture(t)
	p := policy(time.Minute, 0)
	for _, key := range []cache.Key{motorcyclesKey, featuredKey, motorcycle42} {
		_, err := cache.Read(context.Background(), f.cache, key, func(context.Context) (int, error) { return 1, nil }, p)
		require.NoError(t, err)
	}

	f.cache.Remove(motorcyclesKey)

	require.Equal(t, cache.StateIdle, f.cache.Lookup(motorcyclesKey).State)
	require.False(t, f.cache.Lookup(featuredKey).HasValue)
	require.Equal(t, cache.StateSuccess, f.cache.Lookup(motorcycle42).State)
}

func TestTypeMismatch(t *testing.T) {
	f := setupTestFixture(t)
	_, err := cache.Read(context.Background(), f.cache, motorcycle42, func(context.Context) (string, error) { return "s", nil }, policy(time.Minute, 0))
	require.NoError(t, err)

	_, err = cache.Read(context.Background(), f.cache, motorcycle42, func(context.Context) (int, error) { return 1, nil }, policy(time.Minute, 0))
	require.ErrorIs(t, err, ierrors.ErrTypeMismatch)
}

func TestKeyHasPrefix(t *testing.T) {
	require.True(t, featuredKey.HasPrefix(motorcyclesKey))
	require.True(t, motorcyclesKey.HasPrefix(cache.Key{}))
	require.False(t, motorcyclesKey.HasPrefix(featuredKey))
	require.False(t, cache.Key{"motorcycle", "420"}.HasPrefix(motorcycle42))
	require.Equal(t, "motorcycle/42", motorcycle42.String())
}
