// Package fakeapi is an in-process stand-in for the dealership API. Tests mount it on an
// httptest server and use its controls to count calls, inject failures and latency, and expire
// tokens.
package fakeapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// Prefix is where the API is mounted; clients use server URL + Prefix as their base URL.
	Prefix = "/api"

	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
	DefaultPageSize   = 10
	DefaultVersion    = "1.0.0"

	// OTPCode is the code the fake mails for every OTP request.
	OTPCode = "123456"
)

type failure struct {
	status int
	body   any
}

// API is the fake backend. It is safe for concurrent use.
type API struct {
	engine     *gin.Engine
	signer     hmacSigner
	nowFunc    func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
	pageSize   int
	version    string

	mu       sync.Mutex
	calls    map[string]int
	failures map[string][]failure
	latency  map[string]time.Duration
	down     bool
	issued   []string
	revoked  map[string]struct{}
	otps     map[string]string
	imageID  int

	admins      *adminStore
	motorcycles *collection
	parts       *collection
	partCats    *collection
	posts       *collection
	blogCats    *collection
	settings    map[string]any
}

type APIOption func(*API)

func WithNowFunc(nowFunc func() time.Time) APIOption {
	return func(a *API) {
		a.nowFunc = nowFunc
	}
}

// WithTokenTTL sets the lifetime of issued access and refresh tokens.
func WithTokenTTL(access, refresh time.Duration) APIOption {
	return func(a *API) {
		a.accessTTL = access
		a.refreshTTL = refresh
	}
}

func WithPageSize(n int) APIOption {
	return func(a *API) {
		a.pageSize = n
	}
}

func WithVersion(version string) APIOption {
	return func(a *API) {
		a.version = version
	}
}

// WithAdmin seeds an admin account.
func WithAdmin(username, email, password string, superuser bool) APIOption {
	return func(a *API) {
		if _, err := a.admins.create(username, email, password, superuser); err != nil {
			panic(err)
		}
	}
}

// New builds the fake with empty catalogues and default garage settings.
func New(options ...APIOption) *API {
	gin.SetMode(gin.TestMode)

	a := &API{
		signer:     hmacSigner{secret: []byte("fakeapi-signing-secret")},
		nowFunc:    time.Now,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		pageSize:   DefaultPageSize,
		version:    DefaultVersion,
		calls:      make(map[string]int),
		failures:   make(map[string][]failure),
		latency:    make(map[string]time.Duration),
		revoked:    make(map[string]struct{}),
		otps:       make(map[string]string),
		imageID:    1,
		admins:     newAdminStore(),
		settings:   defaultSettings(),
	}
	a.motorcycles = newCollection("id")
	a.parts = newCollection("id")
	a.partCats = newCollection("id")
	a.posts = newCollection("slug")
	a.blogCats = newCollection("id")

	for _, opt := range options {
		opt(a)
	}

	a.engine = gin.New()
	a.engine.Use(gin.Recovery(), a.instrument())
	a.initRoutes(a.engine.Group(Prefix))
	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.engine.ServeHTTP(w, r)
}

// Calls returns how many requests reached route, e.g. Calls("POST", "/token/refresh/").
// Routes are the registered patterns, so "/motorcycles/:id/" counts every item.
func (a *API) Calls(method, route string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method+" "+route]
}

// FailNext makes the next request to route answer status with body instead of being handled.
// Calls queue up.
func (a *API) FailNext(method, route string, status int, body any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := method + " " + route
	a.failures[key] = append(a.failures[key], failure{status: status, body: body})
}

// SetLatency delays requests to route by d. Route "*" matches every route of method.
func (a *API) SetLatency(method, route string, d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latency[method+" "+route] = d
}

// SetDown makes every request answer 503 while down is true.
func (a *API) SetDown(down bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.down = down
}

// ExpireAccessTokens revokes every access token issued so far. Their exp claims still look
// valid to a client, so the next authenticated request is answered 401.
func (a *API) ExpireAccessTokens() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, jti := range a.issued {
		a.revoked[jti] = struct{}{}
	}
	a.issued = nil
}

// IssueTokens returns a fresh token pair for the admin with username.
func (a *API) IssueTokens(username string) (access, refresh string) {
	admin, ok := a.admins.byUsername(username)
	if !ok {
		panic("fakeapi: unknown admin " + username)
	}
	return a.issue(admin.ID, accessTokenType, a.accessTTL), a.issue(admin.ID, refreshTokenType, a.refreshTTL)
}

// IssueExpiredAccess returns an access token for username that expired a minute ago.
func (a *API) IssueExpiredAccess(username string) string {
	admin, ok := a.admins.byUsername(username)
	if !ok {
		panic("fakeapi: unknown admin " + username)
	}
	return a.issue(admin.ID, accessTokenType, -time.Minute)
}

// instrument counts calls per route, then applies latency, outages and injected failures.
func (a *API) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := strings.TrimPrefix(c.FullPath(), Prefix)
		if c.FullPath() == "" {
			route = c.Request.URL.Path
		}
		key := c.Request.Method + " " + route

		a.mu.Lock()
		a.calls[key]++
		delay, ok := a.latency[key]
		if !ok {
			delay = a.latency[c.Request.Method+" *"]
		}
		down := a.down
		var injected *failure
		if queue := a.failures[key]; len(queue) > 0 {
			injected = &queue[0]
			a.failures[key] = queue[1:]
		}
		a.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if down {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "Service temporarily unavailable."})
			return
		}
		if injected != nil {
			if injected.body == nil {
				c.AbortWithStatus(injected.status)
				return
			}
			c.AbortWithStatusJSON(injected.status, injected.body)
			return
		}
		c.Next()
	}
}
