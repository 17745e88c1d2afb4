// Package motorcycles is the client of the motorcycle catalogue.
package motorcycles

import (
	"context"
	"strconv"
	"time"

	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/mutation"
	"github.com/jrsteele09/go-moto-client/resource"
)

const basePath = "/motorcycles/"

var (
	ListKey     = cache.Key{"motorcycles"}
	FeaturedKey = cache.Key{"motorcycles", "featured"}
)

// ItemKey is the cache key of one motorcycle.
func ItemKey(id int) cache.Key {
	return cache.Key{"motorcycle", strconv.Itoa(id)}
}

// Motorcycle is a bike of the catalogue. Price is a decimal string.
type Motorcycle struct {
	ID          int              `json:"id"`
	Brand       string           `json:"brand"`
	Model       string           `json:"model"`
	Year        int              `json:"year"`
	Price       string           `json:"price"`
	Mileage     int              `json:"mileage"`
	Engine      string           `json:"engine"`
	Power       string           `json:"power"`
	License     string           `json:"license"`
	Color       string           `json:"color"`
	Description string           `json:"description"`
	IsSold      bool             `json:"is_sold"`
	IsNew       bool             `json:"is_new"`
	IsFeatured  bool             `json:"is_featured"`
	Images      []resource.Image `json:"images"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// PrimaryImage returns the primary image, or the first one when none is marked.
func (m Motorcycle) PrimaryImage() (resource.Image, bool) {
	for _, img := range m.Images {
		if img.IsPrimary {
			return img, true
		}
	}
	if len(m.Images) > 0 {
		return m.Images[0], true
	}
	return resource.Image{}, false
}

// Input is the create and update payload.
type Input struct {
	Brand       string `json:"brand" validate:"required,max=100"`
	Model       string `json:"model" validate:"required,max=100"`
	Year        int    `json:"year" validate:"required,gte=1900,lte=2100"`
	Price       string `json:"price" validate:"required,numeric"`
	Mileage     int    `json:"mileage" validate:"gte=0"`
	Engine      string `json:"engine,omitempty"`
	Power       string `json:"power,omitempty"`
	License     string `json:"license,omitempty"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
	IsSold      bool   `json:"is_sold"`
	IsNew       bool   `json:"is_new"`
	IsFeatured  bool   `json:"is_featured"`
}

// Service reads and edits motorcycles.
type Service struct {
	*resource.Collection[Motorcycle, Input]
	gallery *resource.Gallery[Motorcycle, Input]
}

func New(tr resource.Sender, c *cache.Cache, p *mutation.Pipeline, policy cache.Policy) *Service {
	items := resource.NewCollection[Motorcycle, Input](tr, c, p, resource.CollectionConfig{
		BasePath: basePath,
		ListKey:  ListKey,
		ItemName: "motorcycle",
		Policy:   policy,
	})
	return &Service{Collection: items, gallery: resource.NewGallery(items)}
}

// Featured lists the motorcycles shown on the home page.
func (s *Service) Featured(ctx context.Context) ([]Motorcycle, error) {
	return s.ListAt(ctx, FeaturedKey, "featured/")
}

// Gallery manages the pictures of each motorcycle.
func (s *Service) Gallery() *resource.Gallery[Motorcycle, Input] {
	return s.gallery
}
