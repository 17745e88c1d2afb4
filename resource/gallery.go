package resource

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/media"
	"github.com/jrsteele09/go-moto-client/mutation"
	"github.com/jrsteele09/go-moto-client/transport"
)

const imagesField = "images"

// Gallery manages the image gallery of the items of a collection.
type Gallery[T any, I any] struct {
	items *Collection[T, I]
}

func NewGallery[T any, I any](items *Collection[T, I]) *Gallery[T, I] {
	return &Gallery[T, I]{items: items}
}

// ImagesKey is nested under the item key so invalidating the item also invalidates its images.
func (g *Gallery[T, I]) ImagesKey(id string) cache.Key {
	return append(g.items.ItemKey(id), imagesField)
}

// Images lists the images of an item.
func (g *Gallery[T, I]) Images(ctx context.Context, id string) ([]Image, error) {
	c := g.items
	return Get[[]Image](ctx, c.tr, c.cache, g.ImagesKey(id), c.ItemPath(id)+"list_images/", c.cfg.Policy)
}

// Upload adds files to an item's gallery. Files that are not images are rejected before
// anything is sent.
func (g *Gallery[T, I]) Upload(ctx context.Context, id string, files ...media.File) ([]Image, error) {
	c := g.items
	op := mutation.Operation{Kind: mutation.Action, Key: c.ItemKey(id), Affects: []cache.Key{c.cfg.ListKey}}
	return mutation.Mutate(ctx, c.mutations, op, func(ctx context.Context) ([]Image, error) {
		parts, err := media.Parts(imagesField, files...)
		if err != nil {
			return nil, err
		}
		var out []Image
		err = c.tr.Do(ctx, transport.Request{
			Method:       http.MethodPost,
			Path:         c.ItemPath(id) + "upload_images/",
			Multipart:    &transport.Multipart{Files: parts},
			RequiresAuth: true,
		}, &out)
		return out, err
	})
}

// SetPrimary marks one image as the item's primary image.
func (g *Gallery[T, I]) SetPrimary(ctx context.Context, id string, imageID int) error {
	return g.imageAction(ctx, id, http.MethodPost, "set_primary_image/", imageID)
}

// DeleteImage removes one image from the item's gallery.
func (g *Gallery[T, I]) DeleteImage(ctx context.Context, id string, imageID int) error {
	return g.imageAction(ctx, id, http.MethodDelete, "delete_image/", imageID)
}

func (g *Gallery[T, I]) imageAction(ctx context.Context, id, method, action string, imageID int) error {
	c := g.items
	body := map[string]int{"image_id": imageID}
	op := mutation.Operation{Kind: mutation.Action, Key: c.ItemKey(id), Payload: body, Affects: []cache.Key{c.cfg.ListKey}}
	_, err := mutation.Mutate(ctx, c.mutations, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.tr.Do(ctx, transport.Request{Method: method, Path: c.ItemPath(id) + action, Body: body, RequiresAuth: true}, nil)
	})
	return err
}
