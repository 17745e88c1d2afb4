package transport_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-moto-client/apierror"
	"github.com/jrsteele09/go-moto-client/session"
	"github.com/jrsteele09/go-moto-client/session/repofake"
	"github.com/jrsteele09/go-moto-client/transport"
	"github.com/stretchr/testify/require"
)

type fakeCredentials struct {
	mu           sync.Mutex
	access       string
	refresh      string
	next         string
	refreshErr   error
	refreshCalls int
	rejected     []string
}

func (f *fakeCredentials) AccessToken() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access, f.access != ""
}

func (f *fakeCredentials) RefreshAfter(_ context.Context, rejected string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	f.rejected = append(f.rejected, rejected)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.access = f.next
	return f.next, nil
}

func (f *fakeCredentials) HasRefreshToken() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh != ""
}

func newClient(t *testing.T, handler http.Handler, options ...transport.ClientOption) *transport.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := transport.New(srv.URL+"/api", options...)
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := transport.New("not a url")
	require.Error(t, err)
	_, err = transport.New("/relative")
	require.Error(t, err)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apierror.Kind
		fields map[string]string
		msg    string
	}{
		{"unauthorized", 401, `{"detail":"Given token not valid"}`, apierror.AuthExpired, nil, "Given token not valid"},
		{"forbidden", 403, `{"detail":"You do not have permission"}`, apierror.Forbidden, nil, "You do not have permission"},
		{"not found", 404, `{"detail":"Not found."}`, apierror.NotFound, nil, "Not found."},
		{"server error", 500, `<html>boom</html>`, apierror.ServiceUnavailable, nil, "<html>boom</html>"},
		{"bad gateway", 502, ``, apierror.ServiceUnavailable, nil, ""},
		{"field errors", 400, `{"price":["A valid number is required."],"year":["Ensure this value is greater than or equal to 1900.","Invalid."]}`,
			apierror.ValidationFailed,
			map[string]string{"price": "A valid number is required.", "year": "Ensure this value is greater than or equal to 1900.; Invalid."}, ""},
		{"error with details", 400, `{"error":"Invalid data","details":{"email":["Enter a valid email address."],"social_media":{"facebook":["Enter a valid URL."]}}}`,
			apierror.ValidationFailed,
			map[string]string{"email": "Enter a valid email address.", "social_media.facebook": "Enter a valid URL."}, "Invalid data"},
		{"bare 400", 400, `{"error":"Code invalide"}`, apierror.ValidationFailed, nil, "Code invalide"},
		{"list body", 400, `["Expired code"]`, apierror.ValidationFailed, nil, "Expired code"},
		{"conflict", 409, `{"detail":"conflict"}`, apierror.Unknown, nil, "conflict"},
		{"teapot with fields", 418, `{"name":"too short"}`, apierror.ValidationFailed, map[string]string{"name": "too short"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := c.Send(context.Background(), transport.Request{Method: http.MethodGet, Path: "/motorcycles/"})
			require.Error(t, err)

			var apiErr *apierror.Error
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.kind, apiErr.Kind)
			require.Equal(t, tt.status, apiErr.Status)
			require.Equal(t, tt.fields, apiErr.Fields)
			require.Equal(t, tt.msg, apiErr.Message)
			require.Equal(t, "/motorcycles/", apiErr.Path)
		})
	}
}

func TestSuccess(t *testing.T) {
	var gotRequestID, gotQuery, gotPath string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get(transport.RequestIDHeader)
		gotQuery = r.URL.RawQuery
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":42,"brand":"Ducati"}`)
	}))

	var out struct {
		ID    int    `json:"id"`
		Brand string `json:"brand"`
	}
	err := c.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		Path:   "/motorcycles/42/",
		Query:  map[string][]string{"page": {"2"}},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, 42, out.ID)
	require.Equal(t, "Ducati", out.Brand)
	require.Equal(t, "page=2", gotQuery)
	require.Equal(t, "/api/motorcycles/42/", gotPath)
	_, err = uuid.Parse(gotRequestID)
	require.NoError(t, err)
}

func TestNetworkFailures(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := transport.New(url)
		require.NoError(t, err)
		_, err = c.Send(context.Background(), transport.Request{Method: http.MethodGet, Path: "/health/"})
		require.Equal(t, apierror.ServiceUnavailable, apierror.KindOf(err))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}), transport.WithTimeout(20*time.Millisecond))

		_, err := c.Send(context.Background(), transport.Request{Method: http.MethodGet, Path: "/motorcycles/"})
		require.Equal(t, apierror.ServiceUnavailable, apierror.KindOf(err))
	})

	t.Run("caller cancellation", func(t *testing.T) {
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		_, err := c.Send(ctx, transport.Request{Method: http.MethodGet, Path: "/motorcycles/"})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, apierror.Unknown, apierror.KindOf(err))
	})
}

func TestBearerAttachment(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = r.Header.Get("Authorization")
		mu.Unlock()
		_, _ = io.WriteString(w, `{}`)
	}))
	c.UseCredentials(&fakeCredentials{access: "access-1", refresh: "refresh-1"})

	ctx := context.Background()
	_, err := c.Send(ctx, transport.Request{Method: http.MethodPost, Path: "/motorcycles/", Body: map[string]string{"brand": "BMW"}, RequiresAuth: true})
	require.NoError(t, err)
	_, err = c.Send(ctx, transport.Request{Method: http.MethodGet, Path: "/parts/"})
	require.NoError(t, err)
	_, err = c.Send(ctx, transport.Request{Method: http.MethodPost, Path: transport.LoginPath, Body: map[string]string{"password": "x"}, RequiresAuth: true})
	require.NoError(t, err)

	require.Equal(t, "Bearer access-1", seen["/api/motorcycles/"])
	require.Empty(t, seen["/api/parts/"])
	require.Empty(t, seen["/api/login/"])
}

// authServer answers 401 unless the request carries one of the accepted tokens.
func authServer(calls *atomic.Int32, accepted ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		for _, tok := range accepted {
			if r.Header.Get("Authorization") == "Bearer "+tok {
				_, _ = io.WriteString(w, `{"ok":true}`)
				return
			}
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Given token not valid for any token type"}`)
	})
}

func TestLongErrorBodyIsCutOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("x", 199) + strings.Repeat("é", 10)
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, body)
	}))

	_, err := c.Send(context.Background(), transport.Request{Method: http.MethodGet, Path: "/motorcycles/"})
	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr))
	require.True(t, utf8.ValidString(apiErr.Message))
	require.Equal(t, strings.Repeat("x", 199)+"...", apiErr.Message)
}

func TestRefreshAndRetry(t *testing.T) {
	req := transport.Request{Method: http.MethodPut, Path: "/garage/settings/", Body: map[string]string{"name": "Moto"}, RequiresAuth: true}

	t.Run("refreshes once then replays", func(t *testing.T) {
		var calls atomic.Int32
		creds := &fakeCredentials{access: "stale", refresh: "r", next: "fresh"}
		c := newClient(t, authServer(&calls, "fresh"), transport.WithCredentials(creds))

		resp, err := c.Send(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.EqualValues(t, 2, calls.Load())
		require.Equal(t, 1, creds.refreshCalls)
		require.Equal(t, []string{"stale"}, creds.rejected)
	})

	t.Run("second rejection is terminal", func(t *testing.T) {
		var calls atomic.Int32
		creds := &fakeCredentials{access: "stale", refresh: "r", next: "also-rejected"}
		c := newClient(t, authServer(&calls), transport.WithCredentials(creds))

		_, err := c.Send(context.Background(), req)
		require.Equal(t, apierror.AuthExpired, apierror.KindOf(err))
		require.EqualValues(t, 2, calls.Load())
		require.Equal(t, 1, creds.refreshCalls)
	})

	t.Run("failed refresh reports an expired session", func(t *testing.T) {
		var calls atomic.Int32
		creds := &fakeCredentials{access: "stale", refresh: "r", refreshErr: &apierror.Error{Kind: apierror.AuthExpired, Status: 401}}
		c := newClient(t, authServer(&calls), transport.WithCredentials(creds))

		_, err := c.Send(context.Background(), req)
		require.Equal(t, apierror.AuthExpired, apierror.KindOf(err))
		require.EqualValues(t, 1, calls.Load())
		require.Equal(t, 1, creds.refreshCalls)
	})

	t.Run("unreachable refresh keeps the session", func(t *testing.T) {
		var calls atomic.Int32
		creds := &fakeCredentials{access: "stale", refresh: "r", refreshErr: &apierror.Error{Kind: apierror.ServiceUnavailable}}
		c := newClient(t, authServer(&calls), transport.WithCredentials(creds))

		_, err := c.Send(context.Background(), req)
		require.Equal(t, apierror.ServiceUnavailable, apierror.KindOf(err))
	})

	t.Run("no refresh token", func(t *testing.T) {
		var calls atomic.Int32
		creds := &fakeCredentials{access: "stale"}
		c := newClient(t, authServer(&calls), transport.WithCredentials(creds))

		_, err := c.Send(context.Background(), req)
		require.Equal(t, apierror.AuthExpired, apierror.KindOf(err))
		require.EqualValues(t, 1, calls.Load())
		require.Zero(t, creds.refreshCalls)
	})

	t.Run("login and refresh endpoints never refresh", func(t *testing.T) {
		for _, path := range []string{transport.LoginPath, transport.RefreshPath} {
			var calls atomic.Int32
			creds := &fakeCredentials{access: "stale", refresh: "r", next: "fresh"}
			c := newClient(t, authServer(&calls, "fresh"), transport.WithCredentials(creds))

			_, err := c.Send(context.Background(), transport.Request{Method: http.MethodPost, Path: path, Body: map[string]string{}, RequiresAuth: true})
			require.Equal(t, apierror.AuthExpired, apierror.KindOf(err))
			require.EqualValues(t, 1, calls.Load())
			require.Zero(t, creds.refreshCalls)
		}
	})

	t.Run("public request does not refresh", func(t *testing.T) {
		var calls atomic.Int32
		creds := &fakeCredentials{access: "stale", refresh: "r", next: "fresh"}
		c := newClient(t, authServer(&calls), transport.WithCredentials(creds))

		_, err := c.Send(context.Background(), transport.Request{Method: http.MethodGet, Path: "/motorcycles/"})
		require.Equal(t, apierror.AuthExpired, apierror.KindOf(err))
		require.Zero(t, creds.refreshCalls)
	})
}

func TestMultipartUpload(t *testing.T) {
	release := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File["images"]
		if len(files) != 2 || r.FormValue("caption") != "front" || files[0].Header.Get("Content-Type") != "image/png" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"uploaded":2}`)
	}), transport.WithTimeout(10*time.Millisecond), transport.WithUploadTimeout(0))

	// Uploads are not bound by the read timeout.
	time.AfterFunc(50*time.Millisecond, func() { close(release) })

	var out struct {
		Uploaded int `json:"uploaded"`
	}
	err := c.Do(context.Background(), transport.Request{
		Method: http.MethodPost,
		Path:   "/motorcycles/1/upload_images/",
		Multipart: &transport.Multipart{
			Fields: map[string]string{"caption": "front"},
			Files: []transport.FilePart{
				{Field: "images", Name: "a.png", ContentType: "image/png", Data: []byte("png-bytes")},
				{Field: "images", Name: "b.jpg", ContentType: "image/jpeg", Data: []byte("jpg-bytes")},
			},
		},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, 2, out.Uploaded)
}

func TestUploadCancellable(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}), transport.WithUploadTimeout(0))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      "/parts/1/upload_images/",
		Multipart: &transport.Multipart{Files: []transport.FilePart{{Field: "images", Name: "a.png", Data: []byte("x")}}},
	})
	require.Equal(t, apierror.ServiceUnavailable, apierror.KindOf(err))
}

// blockingTokenAPI holds every refresh until release is closed.
type blockingTokenAPI struct {
	calls   atomic.Int32
	access  string
	release chan struct{}
}

func (b *blockingTokenAPI) Login(context.Context, session.Credentials) (session.Tokens, error) {
	return session.Tokens{}, errors.New("not used")
}

func (b *blockingTokenAPI) Refresh(context.Context, string) (string, error) {
	b.calls.Add(1)
	<-b.release
	return b.access, nil
}

func signedAccess(t *testing.T, jti string) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"token_type": "access",
		"exp":        time.Now().Add(5 * time.Minute).Unix(),
		"jti":        jti,
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return raw
}

func TestStaleRequestKeepsNewerSession(t *testing.T) {
	repo := repofake.New()
	api := &blockingTokenAPI{access: signedAccess(t, "refreshed"), release: make(chan struct{})}
	store := session.New(repo, api)
	_, err := store.Establish(session.Tokens{Access: signedAccess(t, "old"), Refresh: "R1"})
	require.NoError(t, err)

	var calls atomic.Int32
	c := newClient(t, authServer(&calls), transport.WithCredentials(store))

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), transport.Request{Method: http.MethodGet, Path: "/x/", RequiresAuth: true})
		done <- err
	}()
	require.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, time.Millisecond)

	fresh := session.Tokens{Access: signedAccess(t, "new"), Refresh: "R2"}
	_, err = store.Establish(fresh)
	require.NoError(t, err)
	close(api.release)

	err = <-done
	require.Equal(t, apierror.AuthExpired, apierror.KindOf(err))

	current, ok := store.Current()
	require.True(t, ok)
	require.Equal(t, fresh.Access, current.AccessToken)
	require.Equal(t, "R2", current.RefreshToken)

	stored, err := repo.Get()
	require.NoError(t, err)
	require.Equal(t, fresh, stored)
}
