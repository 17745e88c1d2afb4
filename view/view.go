// Package view maps cache reads and mutation results to the three states a screen renders.
package view

import (
	"errors"

	"github.com/jrsteele09/go-moto-client/apierror"
	"github.com/jrsteele09/go-moto-client/cache"
)

type Status string

const (
	Loading Status = "loading"
	Success Status = "success"
	Error   Status = "error"
)

// State is a renderable outcome. Data is meaningful when HasData is set, which for an Error
// state means the last known good value is still available.
type State[T any] struct {
	Status  Status
	Data    T
	HasData bool
	Stale   bool
	Err     error
}

// ErrorKind returns the classified kind of the error, or an empty Kind.
func (s State[T]) ErrorKind() apierror.Kind {
	return apierror.KindOf(s.Err)
}

// FromResult builds a state from the return values of a read or a mutation.
func FromResult[T any](v T, err error) State[T] {
	if err == nil {
		return State[T]{Status: Success, Data: v, HasData: true}
	}
	s := State[T]{Status: Error, Err: err}
	var fe *cache.FetchError
	if errors.As(err, &fe) && fe.HasStale {
		s.Data, s.HasData, s.Stale = v, true, true
	}
	return s
}

// FromSnapshot builds a state from the current cache entry without fetching.
func FromSnapshot[T any](snap cache.Snapshot) State[T] {
	s := State[T]{Stale: snap.Stale}
	if snap.HasValue {
		if v, ok := snap.Value.(T); ok {
			s.Data, s.HasData = v, true
		}
	}
	switch snap.State {
	case cache.StateSuccess:
		s.Status = Success
	case cache.StateError:
		s.Status = Error
		s.Err = snap.Err
	default:
		s.Status = Loading
	}
	return s
}
