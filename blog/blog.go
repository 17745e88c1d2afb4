// Package blog is the client of the blog. Posts are addressed by slug.
package blog

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/internal/utils"
	"github.com/jrsteele09/go-moto-client/media"
	"github.com/jrsteele09/go-moto-client/mutation"
	"github.com/jrsteele09/go-moto-client/resource"
	"github.com/jrsteele09/go-moto-client/transport"
)

const (
	postsPath      = "/blog/posts/"
	categoriesPath = "/blog/categories/"
	imageField     = "image"
)

var (
	ListKey       = cache.Key{"blog"}
	CategoriesKey = cache.Key{"blog-categories"}
)

func ItemKey(slug string) cache.Key {
	return cache.Key{"post", slug}
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Post struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Content     string    `json:"content"`
	Excerpt     string    `json:"excerpt"`
	Category    *Category `json:"category"`
	Image       *string   `json:"image"`
	IsPublished bool      `json:"is_published"`
	Views       int       `json:"views"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ImageURL returns the post image as a site relative URL when it is served by the API host.
func (p Post) ImageURL() string {
	return media.NormalizeURL(utils.Value(p.Image))
}

// Input is the create and update payload. The slug is assigned by the API.
type Input struct {
	Title       string `json:"title" validate:"required,max=200"`
	CategoryID  int    `json:"category_id" validate:"required,gt=0"`
	Content     string `json:"content" validate:"required"`
	Excerpt     string `json:"excerpt,omitempty" validate:"max=500"`
	IsPublished bool   `json:"is_published"`
}

type Service struct {
	*resource.Collection[Post, Input]
	tr       resource.Sender
	cache    *cache.Cache
	pipeline *mutation.Pipeline
	catalog  cache.Policy
}

func New(tr resource.Sender, c *cache.Cache, p *mutation.Pipeline, policy, categories cache.Policy) *Service {
	posts := resource.NewCollection[Post, Input](tr, c, p, resource.CollectionConfig{
		BasePath: postsPath,
		ListKey:  ListKey,
		ItemName: "post",
		Policy:   policy,
	})
	return &Service{Collection: posts, tr: tr, cache: c, pipeline: p, catalog: categories}
}

// Published lists the posts visible on the public site, newest first as served.
func (s *Service) Published(ctx context.Context) ([]Post, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []Post{}
	for _, p := range all {
		if p.IsPublished {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	req := transport.Request{Method: http.MethodGet, Path: categoriesPath}
	return cache.Read(ctx, s.cache, CategoriesKey, resource.FetchAll[Category](s.tr, req), s.catalog)
}

// UploadImage sets the image of a post, replacing any previous one.
func (s *Service) UploadImage(ctx context.Context, slug string, file media.File) (Post, error) {
	op := mutation.Operation{Kind: mutation.Action, Key: ItemKey(slug), Affects: []cache.Key{ListKey}}
	return mutation.Mutate(ctx, s.pipeline, op, func(ctx context.Context) (Post, error) {
		parts, err := media.Parts(imageField, file)
		if err != nil {
			return Post{}, err
		}
		var out Post
		err = s.tr.Do(ctx, transport.Request{
			Method:       http.MethodPost,
			Path:         s.ItemPath(slug) + "upload_image/",
			Multipart:    &transport.Multipart{Files: parts},
			RequiresAuth: true,
		}, &out)
		return out, err
	})
}

// DeleteImage removes the image of a post.
func (s *Service) DeleteImage(ctx context.Context, slug string) error {
	op := mutation.Operation{Kind: mutation.Action, Key: ItemKey(slug), Affects: []cache.Key{ListKey}}
	_, err := mutation.Mutate(ctx, s.pipeline, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.tr.Do(ctx, transport.Request{Method: http.MethodDelete, Path: s.ItemPath(slug) + "delete_image/", RequiresAuth: true}, nil)
	})
	return err
}
