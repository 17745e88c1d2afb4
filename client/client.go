// Package client wires the transport, session, cache and resource clients of the dealership API
// into one value built from configuration.
package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/jrsteele09/go-moto-client/admins"
	"github.com/jrsteele09/go-moto-client/auth"
	"github.com/jrsteele09/go-moto-client/blog"
	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/garage"
	"github.com/jrsteele09/go-moto-client/internal/config"
	ierrors "github.com/jrsteele09/go-moto-client/internal/errors"
	"github.com/jrsteele09/go-moto-client/internal/metrics"
	"github.com/jrsteele09/go-moto-client/motorcycles"
	"github.com/jrsteele09/go-moto-client/mutation"
	"github.com/jrsteele09/go-moto-client/parts"
	"github.com/jrsteele09/go-moto-client/session"
	"github.com/jrsteele09/go-moto-client/transport"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Client is the entry point of the library.
type Client struct {
	Motorcycles *motorcycles.Service
	Parts       *parts.Service
	Blog        *blog.Service
	Garage      *garage.Service
	Admins      *admins.Service

	cfg        config.Config
	logger     zerolog.Logger
	registerer prometheus.Registerer
	httpClient *http.Client
	nowFunc    func() time.Time
	fs         afero.Fs

	repo      session.Repo
	closer    io.Closer
	transport *transport.Client
	auth      *auth.API
	session   *session.Store
	cache     *cache.Cache
	mutations *mutation.Pipeline
}

type ClientOption func(*Client)

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRegisterer registers the client's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) ClientOption {
	return func(c *Client) {
		c.registerer = reg
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithNowFunc(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = nowFunc
	}
}

// WithRepo stores tokens in repo instead of the configured store.
func WithRepo(repo session.Repo) ClientOption {
	return func(c *Client) {
		c.repo = repo
	}
}

// WithFs sets the filesystem of the file token store.
func WithFs(fs afero.Fs) ClientOption {
	return func(c *Client) {
		c.fs = fs
	}
}

// New builds a client from cfg. Nothing is read or sent until Init.
func New(cfg config.Config, options ...ClientOption) (*Client, error) {
	c := &Client{
		cfg:     cfg,
		logger:  log.Logger,
		nowFunc: time.Now,
		fs:      afero.NewOsFs(),
	}
	for _, opt := range options {
		opt(c)
	}

	policies, err := loadPolicies(cfg)
	if err != nil {
		return nil, err
	}

	if c.repo == nil {
		c.repo, c.closer, err = openRepo(cfg, c.fs)
		if err != nil {
			return nil, err
		}
	}

	m := metrics.New(c.registerer)

	trOpts := []transport.ClientOption{
		transport.WithTimeout(cfg.GetRequestTimeout()),
		transport.WithUploadTimeout(cfg.GetUploadTimeout()),
		transport.WithLogger(c.logger),
		transport.WithMetrics(m),
	}
	if c.httpClient != nil {
		trOpts = append(trOpts, transport.WithHTTPClient(c.httpClient))
	}
	c.transport, err = transport.New(cfg.GetAPIBaseURL(), trOpts...)
	if err != nil {
		c.closeRepo()
		return nil, errors.Wrap(err, "[client.New] transport")
	}

	c.auth = auth.New(c.transport)
	c.session = session.New(c.repo, c.auth,
		session.WithNowFunc(c.nowFunc),
		session.WithLogger(c.logger),
		session.WithMetrics(m),
	)
	c.transport.UseCredentials(c.session)

	c.cache = cache.New(cache.WithNowFunc(c.nowFunc), cache.WithLogger(c.logger), cache.WithMetrics(m))
	c.mutations = mutation.New(c.cache, mutation.WithLogger(c.logger), mutation.WithMetrics(m))

	c.Motorcycles = motorcycles.New(c.transport, c.cache, c.mutations, policies[config.MotorcyclesResource])
	c.Parts = parts.New(c.transport, c.cache, c.mutations, policies[config.PartsResource], policies[config.PartCategoriesResource])
	c.Blog = blog.New(c.transport, c.cache, c.mutations, policies[config.BlogResource], policies[config.BlogCategoriesResource])
	c.Garage = garage.New(c.transport, c.cache, c.mutations, policies[config.GarageSettingsResource])
	c.Admins = admins.New(c.transport, c.cache, c.mutations, policies[config.AdminsResource])
	return c, nil
}

// Init loads the stored session. An expired one is cleared without contacting the API.
func (c *Client) Init() error {
	return errors.Wrap(c.session.Init(), "[Client.Init]")
}

// Close drops the cache and releases the token store.
func (c *Client) Close() error {
	c.cache.Clear()
	return c.closeRepo()
}

func (c *Client) closeRepo() error {
	if c.closer == nil {
		return nil
	}
	return errors.Wrap(c.closer.Close(), "[Client.Close] token store")
}

// Session returns the live session, if any.
func (c *Client) Session() (session.Session, bool) {
	return c.session.Current()
}

// Login signs in with a password, and a username when the API has several admins.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.Session, error) {
	op := mutation.Operation{Kind: mutation.Action, Payload: creds}
	return mutation.Mutate(ctx, c.mutations, op, func(ctx context.Context) (session.Session, error) {
		return c.session.Login(ctx, creds)
	})
}

// Logout ends the session and drops cached data only admins may see.
func (c *Client) Logout() {
	c.session.Logout()
	c.cache.Remove(admins.ListKey)
}

// RequestOTP mails a password reset code to an admin.
func (c *Client) RequestOTP(ctx context.Context, email string) (auth.Message, error) {
	in := auth.OTPRequest{Email: email}
	return mutation.Mutate(ctx, c.mutations, mutation.Operation{Kind: mutation.Action, Payload: in}, func(ctx context.Context) (auth.Message, error) {
		return c.auth.RequestOTP(ctx, in)
	})
}

// VerifyOTP checks a code without consuming it.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (auth.Message, error) {
	in := auth.OTPCheck{Email: email, Code: code}
	return mutation.Mutate(ctx, c.mutations, mutation.Operation{Kind: mutation.Action, Payload: in}, func(ctx context.Context) (auth.Message, error) {
		return c.auth.VerifyOTP(ctx, in)
	})
}

// ConfirmOTP resets the admin's password and signs in with the tokens the API returns.
func (c *Client) ConfirmOTP(ctx context.Context, email, code, newPassword string) (session.Session, error) {
	in := auth.OTPConfirm{Email: email, Code: code, NewPassword: newPassword}
	return mutation.Mutate(ctx, c.mutations, mutation.Operation{Kind: mutation.Action, Payload: in}, func(ctx context.Context) (session.Session, error) {
		tokens, err := c.auth.ConfirmOTP(ctx, in)
		if err != nil {
			return session.Session{}, err
		}
		return c.session.Establish(tokens)
	})
}

// Health is the API health check body.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Info is the API root document.
type Info struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health asks the API whether it is up. It is never cached.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.transport.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/health/"}, &h)
	return h, err
}

// CheckCompatibility fails with ErrIncompatibleAPI when the API version does not satisfy the
// configured constraint.
func (c *Client) CheckCompatibility(ctx context.Context) (Info, error) {
	constraint, err := semver.NewConstraint(c.cfg.GetVersionConstraint())
	if err != nil {
		return Info{}, errors.Wrap(err, "[Client.CheckCompatibility] constraint")
	}

	var info Info
	if err := c.transport.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/"}, &info); err != nil {
		return Info{}, err
	}
	version, err := semver.NewVersion(info.Version)
	if err != nil {
		return info, errors.Wrapf(ierrors.ErrIncompatibleAPI, "api reports version %q", info.Version)
	}
	if !constraint.Check(version) {
		return info, errors.Wrapf(ierrors.ErrIncompatibleAPI, "api version %s does not satisfy %s", version, constraint)
	}
	return info, nil
}

// Cache exposes the resource cache for view bindings.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}
