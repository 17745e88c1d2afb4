package resource

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/mutation"
	"github.com/jrsteele09/go-moto-client/transport"
)

// CollectionConfig names a REST collection and its cache keys.
type CollectionConfig struct {
	// BasePath is the collection path, e.g. "/motorcycles/".
	BasePath string
	// ListKey caches the full list, e.g. Key{"motorcycles"}. It is also the prefix of every
	// derived list key (featured, pages).
	ListKey cache.Key
	// ItemName is the first element of single item keys, e.g. "motorcycle".
	ItemName string
	Policy   cache.Policy
}

// Collection is a cached CRUD client for items of type T written with payloads of type I.
type Collection[T any, I any] struct {
	tr        Sender
	cache     *cache.Cache
	mutations *mutation.Pipeline
	cfg       CollectionConfig
}

func NewCollection[T any, I any](tr Sender, c *cache.Cache, p *mutation.Pipeline, cfg CollectionConfig) *Collection[T, I] {
	return &Collection[T, I]{tr: tr, cache: c, mutations: p, cfg: cfg}
}

// ListKey returns the key of the full list.
func (c *Collection[T, I]) ListKey() cache.Key {
	return c.cfg.ListKey
}

// ItemKey returns the key of one item.
func (c *Collection[T, I]) ItemKey(id string) cache.Key {
	return cache.Key{c.cfg.ItemName, id}
}

// Policy returns the read policy of the collection.
func (c *Collection[T, I]) Policy() cache.Policy {
	return c.cfg.Policy
}

// ItemPath returns the path of one item.
func (c *Collection[T, I]) ItemPath(id string) string {
	return c.cfg.BasePath + id + "/"
}

// List returns every item, following pagination.
func (c *Collection[T, I]) List(ctx context.Context) ([]T, error) {
	return cache.Read(ctx, c.cache, c.cfg.ListKey, FetchAll[T](c.tr, c.listRequest()), c.cfg.Policy)
}

// Page returns one page of the list.
func (c *Collection[T, I]) Page(ctx context.Context, page int) (Page[T], error) {
	key := append(append(cache.Key{}, c.cfg.ListKey...), "page", strconv.Itoa(page))
	req := transport.Request{
		Method: http.MethodGet,
		Path:   c.cfg.BasePath,
		Query:  url.Values{"page": {strconv.Itoa(page)}},
	}
	return cache.Read(ctx, c.cache, key, Fetch[Page[T]](c.tr, req), c.cfg.Policy)
}

// Reload refetches the full list even when it is fresh.
func (c *Collection[T, I]) Reload(ctx context.Context) ([]T, error) {
	return cache.Refetch(ctx, c.cache, c.cfg.ListKey, FetchAll[T](c.tr, c.listRequest()), c.cfg.Policy)
}

// ListAt reads the unpaginated list served by a collection action such as "featured/". Keep key
// under ListKey so that writes invalidate it.
func (c *Collection[T, I]) ListAt(ctx context.Context, key cache.Key, action string) ([]T, error) {
	return Get[[]T](ctx, c.tr, c.cache, key, c.cfg.BasePath+action, c.cfg.Policy)
}

// Get returns one item.
func (c *Collection[T, I]) Get(ctx context.Context, id string) (T, error) {
	return Get[T](ctx, c.tr, c.cache, c.ItemKey(id), c.ItemPath(id), c.cfg.Policy)
}

// Create adds an item. The list is invalidated on success.
func (c *Collection[T, I]) Create(ctx context.Context, in I) (T, error) {
	op := mutation.Operation{Kind: mutation.Create, Payload: in, Affects: []cache.Key{c.cfg.ListKey}}
	return mutation.Mutate(ctx, c.mutations, op, c.send(http.MethodPost, c.cfg.BasePath, in))
}

// Update replaces an item. The item and the list are invalidated on success.
func (c *Collection[T, I]) Update(ctx context.Context, id string, in I) (T, error) {
	op := mutation.Operation{Kind: mutation.Update, Key: c.ItemKey(id), Payload: in, Affects: []cache.Key{c.cfg.ListKey}}
	return mutation.Mutate(ctx, c.mutations, op, c.send(http.MethodPut, c.ItemPath(id), in))
}

// Delete removes an item. The item and the list are invalidated on success.
func (c *Collection[T, I]) Delete(ctx context.Context, id string) error {
	op := mutation.Operation{Kind: mutation.Delete, Key: c.ItemKey(id), Affects: []cache.Key{c.cfg.ListKey}}
	_, err := mutation.Mutate(ctx, c.mutations, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.tr.Do(ctx, transport.Request{Method: http.MethodDelete, Path: c.ItemPath(id), RequiresAuth: true}, nil)
	})
	return err
}

func (c *Collection[T, I]) listRequest() transport.Request {
	return transport.Request{Method: http.MethodGet, Path: c.cfg.BasePath}
}

func (c *Collection[T, I]) send(method, path string, body any) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var out T
		err := c.tr.Do(ctx, transport.Request{Method: method, Path: path, Body: body, RequiresAuth: true}, &out)
		return out, err
	}
}
