// Package resource provides the cached read and mutation plumbing shared by the per-resource
// clients.
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/internal/utils"
	"github.com/jrsteele09/go-moto-client/transport"
)

// Page is the API's pagination envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Image is one picture of a gallery.
type Image struct {
	ID        int       `json:"id"`
	Image     string    `json:"image"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender is the part of the transport resource clients use.
type Sender interface {
	Do(ctx context.Context, req transport.Request, out any) error
}

var _ Sender = (*transport.Client)(nil)

// Get reads path through the cache under key.
func Get[V any](ctx context.Context, tr Sender, c *cache.Cache, key cache.Key, path string, policy cache.Policy) (V, error) {
	return cache.Read(ctx, c, key, Fetch[V](tr, transport.Request{Method: http.MethodGet, Path: path}), policy)
}

// Fetch returns a fetcher that sends req and decodes the response as V.
func Fetch[V any](tr Sender, req transport.Request) cache.Fetcher[V] {
	return func(ctx context.Context) (V, error) {
		var v V
		err := tr.Do(ctx, req, &v)
		return v, err
	}
}

// FetchAll returns a fetcher that sends req and follows the next links of the paginated
// response, collecting every result. An unpaginated list body is accepted as a single page.
func FetchAll[T any](tr Sender, req transport.Request) cache.Fetcher[[]T] {
	return func(ctx context.Context) ([]T, error) {
		items := []T{}
		next := req
		for {
			var page pageOrList[T]
			if err := tr.Do(ctx, next, &page); err != nil {
				return nil, err
			}
			items = append(items, page.Results...)
			link := utils.Value(page.Next)
			if link == "" {
				return items, nil
			}
			next = transport.Request{Method: http.MethodGet, Path: link, RequiresAuth: req.RequiresAuth}
		}
	}
}

type pageOrList[T any] struct {
	Page[T]
}

func (p *pageOrList[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &p.Results)
	}
	return json.Unmarshal(trimmed, &p.Page)
}
