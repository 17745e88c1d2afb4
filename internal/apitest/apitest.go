// Package apitest runs a client against the fake API for package tests.
package apitest

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-moto-client/client"
	"github.com/jrsteele09/go-moto-client/internal/config"
	"github.com/jrsteele09/go-moto-client/internal/fakeapi"
	"github.com/jrsteele09/go-moto-client/session"
	"github.com/jrsteele09/go-moto-client/session/repofake"
	"github.com/stretchr/testify/require"
)

// Seeded admin account.
const (
	AdminName     = "boss"
	AdminEmail    = "boss@example.com"
	AdminPassword = "Secret123"
)

// Config points a default configuration at a test server and keeps tokens in memory.
type Config struct {
	config.Config
	BaseURL string
}

func (c Config) GetAPIBaseURL() string     { return c.BaseURL }
func (c Config) GetTokenStoreKind() string { return config.StorageMemory }

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type Env struct {
	API    *fakeapi.API
	Client *client.Client
	Repo   *repofake.InMemoryRepo
	Clock  *Clock
}

// New starts the fake API with one super admin and a client pointed at it. Both are torn down
// when the test ends.
func New(t *testing.T, apiOptions ...fakeapi.APIOption) *Env {
	t.Helper()
	apiOptions = append([]fakeapi.APIOption{fakeapi.WithAdmin(AdminName, AdminEmail, AdminPassword, true)}, apiOptions...)
	api := fakeapi.New(apiOptions...)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	env := &Env{API: api, Repo: repofake.New(), Clock: NewClock()}
	c, err := client.New(Config{Config: config.New(), BaseURL: srv.URL + fakeapi.Prefix},
		client.WithRepo(env.Repo),
		client.WithNowFunc(env.Clock.Now),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	env.Client = c
	return env
}

// Login signs the seeded admin in.
func (e *Env) Login(t *testing.T) session.Session {
	t.Helper()
	sess, err := e.Client.Login(context.Background(), session.Credentials{Username: AdminName, Password: AdminPassword})
	require.NoError(t, err)
	return sess
}
