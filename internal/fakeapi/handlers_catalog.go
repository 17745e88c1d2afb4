package fakeapi

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// schema describes how a catalogue validates and renders its records.
type schema struct {
	required []string
	numeric  []string
	defaults record
	// slugFrom names the field the slug is derived from, for collections addressed by slug.
	slugFrom string
	// render expands stored references for responses.
	render func(a *API, r record) record
}

var motorcycleSchema = schema{
	required: []string{"brand", "model", "year", "price"},
	numeric:  []string{"price"},
	defaults: record{"mileage": 0, "is_sold": false, "is_new": false, "is_featured": false, "description": ""},
	render: func(a *API, r record) record {
		r["images"] = a.motorcycles.imagesOf(strconv.Itoa(r["id"].(int)))
		return r
	},
}

var partSchema = schema{
	required: []string{"name", "price"},
	numeric:  []string{"price"},
	defaults: record{"stock": 0, "condition": "new", "is_available": true, "is_featured": false},
	render: func(a *API, r record) record {
		r["category"] = a.category(a.partCats, r["category"])
		r["images"] = a.parts.imagesOf(strconv.Itoa(r["id"].(int)))
		return r
	},
}

var postSchema = schema{
	required: []string{"title", "content", "category_id"},
	defaults: record{"excerpt": "", "image": nil, "is_published": false, "views": 0},
	slugFrom: "title",
	render: func(a *API, r record) record {
		r["category"] = a.category(a.blogCats, r["category_id"])
		delete(r, "category_id")
		return r
	},
}

// category resolves a category id to its record, or nil.
func (a *API) category(cats *collection, ref any) any {
	id, ok := ref.(float64)
	if !ok {
		if n, isInt := ref.(int); isInt {
			id, ok = float64(n), true
		}
	}
	if !ok {
		return nil
	}
	r, found := cats.get(strconv.Itoa(int(id)))
	if !found {
		return nil
	}
	return r
}

// SeedMotorcycle stores a motorcycle as if an admin had created it and returns its id.
func (a *API) SeedMotorcycle(fields map[string]any) int {
	return a.seed(a.motorcycles, motorcycleSchema, fields)
}

// SeedPart stores a part and returns its id.
func (a *API) SeedPart(fields map[string]any) int {
	return a.seed(a.parts, partSchema, fields)
}

// SeedPartCategory stores a part category and returns its id.
func (a *API) SeedPartCategory(name string) int {
	return a.seed(a.partCats, schema{}, record{"name": name, "slug": slugify(name), "description": ""})
}

// SeedBlogCategory stores a blog category and returns its id.
func (a *API) SeedBlogCategory(name string) int {
	return a.seed(a.blogCats, schema{}, record{"name": name, "slug": slugify(name)})
}

// SeedPost stores a blog post and returns its slug.
func (a *API) SeedPost(fields map[string]any) string {
	r := a.newRecord(postSchema, fields)
	return a.posts.insert(r, stringField(r, postSchema.slugFrom))
}

func (a *API) seed(c *collection, s schema, fields map[string]any) int {
	r := a.newRecord(s, fields)
	c.insert(r, stringField(r, s.slugFrom))
	return r["id"].(int)
}

func (a *API) newRecord(s schema, fields map[string]any) record {
	now := a.nowFunc().UTC().Format(time.RFC3339)
	r := record{"created_at": now, "updated_at": now}
	for k, v := range s.defaults {
		r[k] = v
	}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func stringField(r record, name string) string {
	if name == "" {
		return ""
	}
	s, _ := r[name].(string)
	return s
}

func (a *API) registerCatalog(g *gin.RouterGroup, base, param string, c *collection, s schema, auth gin.HandlerFunc) {
	item := base + ":" + param + "/"
	g.GET(base, a.listHandler(base, c, s.render))
	g.POST(base, auth, a.createHandler(c, s))
	g.GET(item, a.getHandler(c, s, param))
	g.PUT(item, auth, a.updateHandler(c, s, param, false))
	g.PATCH(item, auth, a.updateHandler(c, s, param, true))
	g.DELETE(item, auth, a.deleteHandler(c, param))
}

// listHandler serves a paginated list with absolute next and previous links. ?search= filters
// on name, title and brand.
func (a *API) listHandler(path string, store *collection, render func(*API, record) record) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		search := strings.ToLower(ctx.Query("search"))
		var keep func(record) bool
		if search != "" {
			keep = func(r record) bool {
				for _, field := range []string{"name", "title", "brand"} {
					if s, ok := r[field].(string); ok && strings.Contains(strings.ToLower(s), search) {
						return true
					}
				}
				return false
			}
		}
		all := store.list(keep)

		page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
		start := (page - 1) * a.pageSize
		if err != nil || page < 1 || (page > 1 && start >= len(all)) {
			ctx.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return
		}
		end := min(start+a.pageSize, len(all))
		results := all[start:end]
		if render != nil {
			for i := range results {
				results[i] = render(a, results[i])
			}
		}

		link := func(n int) any {
			q := url.Values{"page": {strconv.Itoa(n)}}
			if search != "" {
				q.Set("search", ctx.Query("search"))
			}
			return "http://" + ctx.Request.Host + Prefix + path + "?" + q.Encode()
		}
		var next, previous any
		if end < len(all) {
			next = link(page + 1)
		}
		if page > 1 {
			previous = link(page - 1)
		}
		ctx.JSON(http.StatusOK, gin.H{"count": len(all), "next": next, "previous": previous, "results": results})
	}
}

func (a *API) featured() gin.HandlerFunc {
	return func(c *gin.Context) {
		out := a.motorcycles.list(func(r record) bool { return r["is_sold"] != true })
		if len(out) > 6 {
			out = out[:6]
		}
		for i := range out {
			out[i] = motorcycleSchema.render(a, out[i])
		}
		c.JSON(http.StatusOK, out)
	}
}

func (a *API) getHandler(c *collection, s schema, param string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		r, ok := c.get(ctx.Param(param))
		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		ctx.JSON(http.StatusOK, a.render(s, r))
	}
}

func (a *API) createHandler(c *collection, s schema) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var body record
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error."})
			return
		}
		if fields := s.validate(body, false); len(fields) > 0 {
			ctx.JSON(http.StatusBadRequest, fields)
			return
		}
		r := a.newRecord(s, body)
		key := c.insert(r, stringField(r, s.slugFrom))
		stored, _ := c.get(key)
		ctx.JSON(http.StatusCreated, a.render(s, stored))
	}
}

func (a *API) updateHandler(c *collection, s schema, param string, partial bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var body record
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error."})
			return
		}
		if fields := s.validate(body, partial); len(fields) > 0 {
			ctx.JSON(http.StatusBadRequest, fields)
			return
		}
		body["updated_at"] = a.nowFunc().UTC().Format(time.RFC3339)
		r, ok := c.update(ctx.Param(param), body)
		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		ctx.JSON(http.StatusOK, a.render(s, r))
	}
}

func (a *API) deleteHandler(c *collection, param string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !c.delete(ctx.Param(param)) {
			ctx.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		ctx.Status(http.StatusNoContent)
	}
}

func (a *API) render(s schema, r record) record {
	if s.render == nil {
		return r
	}
	return s.render(a, r)
}

// validate returns DRF style field errors: each field maps to a list of messages.
func (s schema) validate(body record, partial bool) map[string][]string {
	fields := map[string][]string{}
	if !partial {
		for _, name := range s.required {
			v, ok := body[name]
			if str, isString := v.(string); !ok || v == nil || (isString && strings.TrimSpace(str) == "") {
				fields[name] = []string{"This field is required."}
			}
		}
	}
	for _, name := range s.numeric {
		if str, ok := body[name].(string); ok && str != "" {
			if _, err := strconv.ParseFloat(str, 64); err != nil {
				fields[name] = []string{"A valid number is required."}
			}
		}
	}
	return fields
}

func (a *API) registerGallery(g *gin.RouterGroup, base, folder string, c *collection, auth gin.HandlerFunc) {
	g.GET(base+":id/list_images/", func(ctx *gin.Context) {
		if _, ok := c.get(ctx.Param("id")); !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		ctx.JSON(http.StatusOK, c.imagesOf(ctx.Param("id")))
	})

	g.POST(base+":id/upload_images/", auth, func(ctx *gin.Context) {
		key := ctx.Param("id")
		if _, ok := c.get(key); !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		images, fieldErr := a.readImages(ctx, "images", folder)
		if fieldErr != nil {
			ctx.JSON(http.StatusBadRequest, fieldErr)
			return
		}
		for _, img := range images {
			c.addImage(key, img)
		}
		all := c.imagesOf(key)
		ctx.JSON(http.StatusCreated, all[len(all)-len(images):])
	})

	g.POST(base+":id/set_primary_image/", auth, func(ctx *gin.Context) {
		id, ok := imageID(ctx)
		if !ok || !c.setPrimary(ctx.Param("id"), id) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	})

	g.DELETE(base+":id/delete_image/", auth, func(ctx *gin.Context) {
		id, ok := imageID(ctx)
		if !ok || !c.deleteImage(ctx.Param("id"), id) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	})
}

func imageID(ctx *gin.Context) (int, bool) {
	var body struct {
		ImageID int `json:"image_id"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil || body.ImageID == 0 {
		return 0, false
	}
	return body.ImageID, true
}

// readImages reads the files of a multipart field, sniffing each one. Image URLs point at the
// development media host like the real API does.
func (a *API) readImages(ctx *gin.Context, field, folder string) ([]record, map[string][]string) {
	form, err := ctx.MultipartForm()
	if err != nil || len(form.File[field]) == 0 {
		return nil, map[string][]string{field: {"No file was submitted."}}
	}
	images := make([]record, 0, len(form.File[field]))
	for _, fh := range form.File[field] {
		f, err := fh.Open()
		if err != nil {
			return nil, map[string][]string{field: {err.Error()}}
		}
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		_ = f.Close()
		if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
			return nil, map[string][]string{field: {"Upload a valid image. The file you uploaded was either not an image or a corrupted image."}}
		}

		a.mu.Lock()
		id := a.imageID
		a.imageID++
		a.mu.Unlock()

		images = append(images, record{
			"id":         id,
			"image":      "http://" + hostname(ctx.Request.Host) + ":8000/media/" + folder + "/" + fh.Filename,
			"created_at": a.nowFunc().UTC().Format(time.RFC3339),
		})
	}
	return images, nil
}

func hostname(hostport string) string {
	host, _, found := strings.Cut(hostport, ":")
	if !found {
		return hostport
	}
	return host
}

func (a *API) uploadPostImage() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		slug := ctx.Param("slug")
		if _, ok := a.posts.get(slug); !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		images, fieldErr := a.readImages(ctx, "image", "blog")
		if fieldErr != nil {
			ctx.JSON(http.StatusBadRequest, fieldErr)
			return
		}
		r, _ := a.posts.update(slug, record{"image": images[0]["image"]})
		ctx.JSON(http.StatusOK, a.render(postSchema, r))
	}
}

func (a *API) deletePostImage() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		r, ok := a.posts.update(ctx.Param("slug"), record{"image": nil})
		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		ctx.JSON(http.StatusOK, a.render(postSchema, r))
	}
}
