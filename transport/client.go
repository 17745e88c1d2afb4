package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-moto-client/apierror"
	"github.com/jrsteele09/go-moto-client/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds every non-upload request.
	DefaultTimeout = 10 * time.Second

	RequestIDHeader = "X-Request-ID"

	maxBodySize = 32 << 20
	tracerName  = "github.com/jrsteele09/go-moto-client/transport"
)

// Credentials is the transport's view of the session store.
type Credentials interface {
	AccessToken() (string, bool)
	RefreshAfter(ctx context.Context, rejected string) (string, error)
	HasRefreshToken() bool
}

// Client sends requests to the dealership API.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	uploadTimeout time.Duration
	logger        zerolog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer

	credsMu sync.RWMutex
	creds   Credentials
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUploadTimeout sets the timeout for multipart requests. Zero disables it; the caller's
// context still cancels the upload.
func WithUploadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.uploadTimeout = d
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = t
	}
}

func WithCredentials(creds Credentials) ClientOption {
	return func(c *Client) {
		c.creds = creds
	}
}

// New creates a Client for the API rooted at baseURL (e.g. "https://moto.example.com/api").
func New(baseURL string, options ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: DefaultTimeout,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c, nil
}

// UseCredentials attaches the session store after construction, since the store itself
// needs a client to reach the refresh endpoint.
func (c *Client) UseCredentials(creds Credentials) {
	c.credsMu.Lock()
	defer c.credsMu.Unlock()
	c.creds = creds
}

func (c *Client) credentials() Credentials {
	c.credsMu.RLock()
	defer c.credsMu.RUnlock()
	return c.creds
}

// Do sends req and decodes a successful JSON response into out, which may be nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return &apierror.Error{Kind: apierror.Unknown, Status: resp.StatusCode, Method: req.Method, Path: req.Path, Err: err}
	}
	return nil
}

// Send performs req. Any non-2xx outcome is returned as an *apierror.Error. A 401 on an
// authenticated request triggers one refresh through the credentials and one replay. Dropping a
// session whose refresh was rejected is left to the credentials, which know whether it is still
// the session the request was sent with.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, &apierror.Error{Kind: apierror.Unknown, Method: req.Method, Path: req.Path, Err: err}
	}

	creds := c.credentials()
	authenticated := req.RequiresAuth && creds != nil && !isAuthEndpoint(req.Path)

	var bearer string
	if authenticated {
		bearer, _ = creds.AccessToken()
	}

	resp, err := c.send(ctx, req, body, contentType, bearer)
	if !authenticated || !apierror.IsKind(err, apierror.AuthExpired) || !creds.HasRefreshToken() {
		return resp, err
	}

	fresh, rerr := creds.RefreshAfter(ctx, bearer)
	if rerr != nil {
		if apierror.IsKind(rerr, apierror.ServiceUnavailable) || ctx.Err() != nil {
			return nil, rerr
		}
		c.logger.Info().Str("method", req.Method).Str("path", req.Path).Msg("session expired")
		return nil, &apierror.Error{
			Kind:    apierror.AuthExpired,
			Status:  http.StatusUnauthorized,
			Method:  req.Method,
			Path:    req.Path,
			Message: "session expired",
			Err:     rerr,
		}
	}
	return c.send(ctx, req, body, contentType, fresh)
}

func (c *Client) send(ctx context.Context, req Request, body []byte, contentType, bearer string) (*Response, error) {
	timeout := c.timeout
	if req.Multipart != nil {
		timeout = c.uploadTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, req.Method+" "+req.Path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Path),
		attribute.String("request.id", requestID),
	)

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req), bytes.NewReader(body))
	if err != nil {
		return nil, &apierror.Error{Kind: apierror.Unknown, Method: req.Method, Path: req.Path, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		(&oauth2.Token{AccessToken: bearer}).SetAuthHeader(httpReq)
	}

	logger := c.logger.With().Str("request_id", requestID).Str("method", req.Method).Str("path", req.Path).Logger()
	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		classified := classifyNetwork(ctx, req.Method, req.Path, err)
		c.finish(span, logger, req.Method, 0, classified, time.Since(start))
		return nil, classified
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		classified := classifyNetwork(ctx, req.Method, req.Path, err)
		c.finish(span, logger, req.Method, httpResp.StatusCode, classified, time.Since(start))
		return nil, classified
	}

	classified := classify(req.Method, req.Path, httpResp.StatusCode, respBody)
	c.finish(span, logger, req.Method, httpResp.StatusCode, classified, time.Since(start))
	if classified != nil {
		return nil, classified
	}
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: respBody}, nil
}

func (c *Client) finish(span trace.Span, logger zerolog.Logger, method string, status int, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = string(apierror.KindOf(err))
	}
	c.metrics.ObserveRequest(method, outcome, d)

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err == nil {
		logger.Debug().Int("status", status).Dur("duration", d).Msg("request completed")
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	event := logger.Debug()
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) && apiErr.Kind == apierror.ServiceUnavailable {
		event = logger.Warn()
	}
	event.Int("status", status).Str("kind", outcome).Dur("duration", d).Err(err).Msg("request failed")
}

func (c *Client) resolve(req Request) string {
	target := req.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + target
	}
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}
	return target
}
