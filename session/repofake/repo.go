package repofake

import (
	"sync"

	ierrors "github.com/jrsteele09/go-moto-client/internal/errors"
	"github.com/jrsteele09/go-moto-client/session"
)

// InMemoryRepo is an in-memory implementation of session.Repo
type InMemoryRepo struct {
	mu     sync.RWMutex
	tokens *session.Tokens
}

var _ session.Repo = (*InMemoryRepo)(nil)

// New creates an empty in-memory token repository
func New() *InMemoryRepo {
	return &InMemoryRepo{}
}

// Upsert stores the token pair
func (r *InMemoryRepo) Upsert(tokens session.Tokens) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = &tokens
	return nil
}

// Get returns the stored token pair
func (r *InMemoryRepo) Get() (session.Tokens, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.tokens == nil {
		return session.Tokens{}, ierrors.ErrSessionNotFound
	}
	return *r.tokens, nil
}

// Delete removes the stored token pair
func (r *InMemoryRepo) Delete() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = nil
	return nil
}
