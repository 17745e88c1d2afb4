package view_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-moto-client/apierror"
	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/view"
	"github.com/stretchr/testify/require"
)

func TestServiceUnavailableRendersErrorState(t *testing.T) {
	c := cache.New()
	calls := 0
	v, err := cache.Read(context.Background(), c, cache.Key{"motorcycles"}, func(context.Context) ([]string, error) {
		calls++
		return nil, &apierror.Error{Kind: apierror.ServiceUnavailable, Status: 503}
	}, cache.Policy{StaleTime: time.Minute, MaxRetries: 3, RetryOn: []apierror.Kind{apierror.Unknown}})

	state := view.FromResult(v, err)
	require.Equal(t, view.Error, state.Status)
	require.Equal(t, apierror.ServiceUnavailable, state.ErrorKind())
	require.False(t, state.HasData)
	require.Equal(t, 1, calls)

	snap := view.FromSnapshot[[]string](c.Lookup(cache.Key{"motorcycles"}))
	require.Equal(t, view.Error, snap.Status)
	require.Equal(t, apierror.ServiceUnavailable, snap.ErrorKind())
}

func TestFromResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := view.FromResult([]int{}, nil)
		require.Equal(t, view.Success, s.Status)
		require.True(t, s.HasData)
		require.Empty(t, s.Data)
	})

	t.Run("error with stale data", func(t *testing.T) {
		err := &cache.FetchError{Key: cache.Key{"motorcycles"}, Attempts: 1, HasStale: true, Err: &apierror.Error{Kind: apierror.ServiceUnavailable}}
		s := view.FromResult([]int{1, 2}, err)
		require.Equal(t, view.Error, s.Status)
		require.True(t, s.HasData)
		require.True(t, s.Stale)
		require.Equal(t, []int{1, 2}, s.Data)
	})

	t.Run("mutation failure", func(t *testing.T) {
		s := view.FromResult(0, &apierror.Error{Kind: apierror.ValidationFailed})
		require.Equal(t, view.Error, s.Status)
		require.False(t, s.HasData)
		require.Equal(t, apierror.ValidationFailed, s.ErrorKind())
	})
}

func TestFromSnapshot(t *testing.T) {
	require.Equal(t, view.Loading, view.FromSnapshot[string](cache.Snapshot{State: cache.StateIdle}).Status)

	s := view.FromSnapshot[string](cache.Snapshot{State: cache.StateLoading, Value: "old", HasValue: true, Stale: true})
	require.Equal(t, view.Loading, s.Status)
	require.True(t, s.HasData)
	require.Equal(t, "old", s.Data)

	s = view.FromSnapshot[string](cache.Snapshot{State: cache.StateSuccess, Value: "v", HasValue: true})
	require.Equal(t, view.Success, s.Status)
	require.Equal(t, "v", s.Data)
	require.Empty(t, s.ErrorKind())
}
