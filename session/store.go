package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-moto-client/apierror"
	ierrors "github.com/jrsteele09/go-moto-client/internal/errors"
	"github.com/jrsteele09/go-moto-client/internal/metrics"
	"github.com/jrsteele09/go-moto-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrNoRefreshToken is returned by Refresh when no refresh token is held.
var ErrNoRefreshToken = ierrors.ErrNoRefreshToken

// Store owns the client's tokens. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	tokens    Tokens
	repo      Repo
	api       TokenAPI
	refreshes singleflight.Group
	nowFunc   func() time.Time
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

type StoreOption func(*Store)

func WithNowFunc(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a Store. Call Init to load a persisted session.
func New(repo Repo, api TokenAPI, options ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		api:    api,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// Init loads the persisted tokens. A stored access token that has already expired clears the
// stored session without contacting the server.
func (s *Store) Init() error {
	tokens, err := s.repo.Get()
	if errors.Is(err, ierrors.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[Store.Init] load tokens")
	}

	if token.IsExpired(tokens.Access, s.nowFunc()) {
		s.logger.Info().Msg("stored session has expired, clearing it")
		return errors.Wrap(s.repo.Delete(), "[Store.Init] clear expired session")
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return nil
}

// Current returns the live session. An expired access token counts as no session.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	tokens := s.tokens
	s.mu.RUnlock()

	if token.IsExpired(tokens.Access, s.nowFunc()) {
		return Session{}, false
	}
	expiresAt, _ := token.ExpiresAt(tokens.Access)
	return Session{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		ExpiresAt:    expiresAt,
	}, true
}

// Login exchanges credentials for a token pair and establishes the session.
func (s *Store) Login(ctx context.Context, creds Credentials) (Session, error) {
	tokens, err := s.api.Login(ctx, creds)
	if err != nil {
		return Session{}, errors.Wrap(err, "[Store.Login] login")
	}
	return s.Establish(tokens)
}

// Establish replaces the session with tokens obtained out of band, such as from an OTP
// confirmed password reset.
func (s *Store) Establish(tokens Tokens) (Session, error) {
	if tokens.Access == "" || tokens.Refresh == "" {
		return Session{}, errors.Wrap(ierrors.ErrInvalidCredentials, "[Store.Establish] incomplete token pair")
	}
	if err := s.repo.Upsert(tokens); err != nil {
		return Session{}, errors.Wrap(err, "[Store.Establish] persist tokens")
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()

	expiresAt, _ := token.ExpiresAt(tokens.Access)
	s.logger.Info().Time("expires_at", expiresAt).Msg("session established")
	return Session{AccessToken: tokens.Access, RefreshToken: tokens.Refresh, ExpiresAt: expiresAt}, nil
}

// Logout drops both tokens from memory and storage. It never contacts the server.
func (s *Store) Logout() {
	s.mu.Lock()
	s.tokens = Tokens{}
	s.mu.Unlock()

	if err := s.repo.Delete(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear stored session")
	}
}

// Refresh obtains a new access token. Concurrent callers share one network call.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	return s.refreshAfter(ctx, "", true)
}

// RefreshAfter refreshes on behalf of a request that was rejected while carrying the access
// token rejected (empty when it was sent without one). When the session already holds a different
// live token, because another caller refreshed in the meantime, that token is returned without a
// network call.
func (s *Store) RefreshAfter(ctx context.Context, rejected string) (string, error) {
	return s.refreshAfter(ctx, rejected, false)
}

func (s *Store) refreshAfter(ctx context.Context, rejected string, force bool) (string, error) {
	tokens, replaced := s.replacementFor(rejected)
	if replaced && !force {
		return tokens.Access, nil
	}
	if tokens.Refresh == "" {
		return "", &apierror.Error{Kind: apierror.AuthExpired, Message: "no refresh token", Err: ErrNoRefreshToken}
	}

	ch := s.refreshes.DoChan(tokens.Refresh, func() (any, error) {
		// A flight that finished between the check above and joining the group may already
		// have replaced the rejected token.
		if current, replaced := s.replacementFor(rejected); replaced && !force {
			return current.Access, nil
		}
		return s.refresh(context.WithoutCancel(ctx), tokens.Refresh)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// replacementFor returns the current tokens and whether they hold a live access token other
// than rejected.
func (s *Store) replacementFor(rejected string) (Tokens, bool) {
	s.mu.RLock()
	tokens := s.tokens
	s.mu.RUnlock()
	return tokens, tokens.Access != rejected && !token.IsExpired(tokens.Access, s.nowFunc())
}

func (s *Store) refresh(ctx context.Context, refreshToken string) (string, error) {
	access, err := s.api.Refresh(ctx, refreshToken)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens.Refresh != refreshToken {
		// Logged out or logged in again while the call was in flight.
		s.metrics.TokenRefresh("discarded")
		return "", &apierror.Error{Kind: apierror.AuthExpired, Message: "session changed during refresh", Err: ierrors.ErrNoSession}
	}

	if err != nil {
		if apierror.KindOf(err) == apierror.ServiceUnavailable {
			s.metrics.TokenRefresh("unavailable")
			return "", err
		}
		s.metrics.TokenRefresh("rejected")
		s.logger.Info().Err(err).Msg("token refresh rejected, clearing session")
		s.tokens = Tokens{}
		if derr := s.repo.Delete(); derr != nil {
			s.logger.Warn().Err(derr).Msg("failed to clear stored session")
		}
		return "", &apierror.Error{Kind: apierror.AuthExpired, Message: "refresh rejected", Err: err}
	}

	s.tokens.Access = access
	if err := s.repo.Upsert(s.tokens); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist refreshed token")
	}
	s.metrics.TokenRefresh("success")
	return access, nil
}

// AccessToken returns the live access token, if any.
func (s *Store) AccessToken() (string, bool) {
	sess, ok := s.Current()
	return sess.AccessToken, ok
}

// HasRefreshToken reports whether a refresh can be attempted.
func (s *Store) HasRefreshToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Refresh != ""
}
