package session

import (
	"context"
	"time"
)

// Tokens is the persisted credential pair. The JSON names match the API's login response.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Session is the authenticated state derived from a live access token.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Credentials is the login payload. Username is optional: the single-admin deployment
// accepts a bare password.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password" validate:"required"`
}

// Repo persists the token pair across process restarts.
type Repo interface {
	Upsert(tokens Tokens) error
	Get() (Tokens, error)
	Delete() error
}

// TokenAPI is the remote side of the session: the login and refresh endpoints.
type TokenAPI interface {
	Login(ctx context.Context, creds Credentials) (Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}
