// Package parts is the client of the spare parts shop.
package parts

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/mutation"
	"github.com/jrsteele09/go-moto-client/resource"
	"github.com/jrsteele09/go-moto-client/transport"
)

const (
	basePath       = "/parts/"
	categoriesPath = "/parts/categories/"
)

var (
	ListKey       = cache.Key{"parts"}
	CategoriesKey = cache.Key{"part-categories"}
)

func ItemKey(id int) cache.Key {
	return cache.Key{"part", strconv.Itoa(id)}
}

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type Part struct {
	ID               int              `json:"id"`
	Name             string           `json:"name"`
	Category         *Category        `json:"category"`
	Brand            string           `json:"brand"`
	CompatibleModels string           `json:"compatible_models"`
	Price            string           `json:"price"`
	Stock            int              `json:"stock"`
	Condition        string           `json:"condition"`
	Description      string           `json:"description"`
	IsAvailable      bool             `json:"is_available"`
	IsFeatured       bool             `json:"is_featured"`
	Images           []resource.Image `json:"images"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// InStock reports whether the part can be ordered.
func (p Part) InStock() bool {
	return p.IsAvailable && p.Stock > 0
}

// Input is the create and update payload. Category is the category id.
type Input struct {
	Name             string `json:"name" validate:"required,max=200"`
	Category         int    `json:"category,omitempty" validate:"gte=0"`
	Brand            string `json:"brand,omitempty"`
	CompatibleModels string `json:"compatible_models,omitempty"`
	Price            string `json:"price" validate:"required,numeric"`
	Stock            int    `json:"stock" validate:"gte=0"`
	Condition        string `json:"condition" validate:"omitempty,oneof=new used refurbished"`
	Description      string `json:"description,omitempty"`
	IsAvailable      bool   `json:"is_available"`
	IsFeatured       bool   `json:"is_featured"`
}

type Service struct {
	*resource.Collection[Part, Input]
	gallery *resource.Gallery[Part, Input]
	tr      resource.Sender
	cache   *cache.Cache
	catalog cache.Policy
}

// New builds the parts client. Categories change rarely and are read with their own policy.
func New(tr resource.Sender, c *cache.Cache, p *mutation.Pipeline, policy, categories cache.Policy) *Service {
	items := resource.NewCollection[Part, Input](tr, c, p, resource.CollectionConfig{
		BasePath: basePath,
		ListKey:  ListKey,
		ItemName: "part",
		Policy:   policy,
	})
	return &Service{Collection: items, gallery: resource.NewGallery(items), tr: tr, cache: c, catalog: categories}
}

// Categories lists the part categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return cache.Read(ctx, s.cache, CategoriesKey, resource.FetchAll[Category](s.tr, transport.Request{Method: http.MethodGet, Path: categoriesPath}), s.catalog)
}

// ByCategory filters the cached list of parts by category slug.
func (s *Service) ByCategory(ctx context.Context, slug string) ([]Part, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []Part{}
	for _, p := range all {
		if p.Category != nil && p.Category.Slug == slug {
			out = append(out, p)
		}
	}
	return out, nil
}

// Search asks the API for parts matching q. Results are cached per query.
func (s *Service) Search(ctx context.Context, q string) ([]Part, error) {
	key := append(append(cache.Key{}, ListKey...), "search", q)
	req := transport.Request{Method: http.MethodGet, Path: basePath, Query: url.Values{"search": {q}}}
	return cache.Read(ctx, s.cache, key, resource.FetchAll[Part](s.tr, req), s.Policy())
}

func (s *Service) Gallery() *resource.Gallery[Part, Input] {
	return s.gallery
}
