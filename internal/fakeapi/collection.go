package fakeapi

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type record = map[string]any

// collection is an ordered in-memory table of JSON objects addressed by lookup, either "id" or
// "slug".
type collection struct {
	lookup string
	items  map[string]record
	images map[string][]record
	nextID int
	lock   sync.RWMutex
}

func newCollection(lookup string) *collection {
	return &collection{
		lookup: lookup,
		items:  make(map[string]record),
		images: make(map[string][]record),
		nextID: 1,
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// insert stores r under a new id, deriving the slug from slugFrom when the collection is
// addressed by slug. It returns the stored key.
func (c *collection) insert(r record, slugFrom string) string {
	c.lock.Lock()
	defer c.lock.Unlock()

	r["id"] = c.nextID
	c.nextID++
	key := strconv.Itoa(r["id"].(int))
	if c.lookup == "slug" {
		base := slugify(slugFrom)
		key = base
		for n := 2; c.items[key] != nil; n++ {
			key = base + "-" + strconv.Itoa(n)
		}
		r["slug"] = key
	}
	c.items[key] = r
	return key
}

func (c *collection) get(key string) (record, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	r, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return clone(r), true
}

// update merges fields into the record at key.
func (c *collection) update(key string, fields record) (record, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	r, ok := c.items[key]
	if !ok {
		return nil, false
	}
	for k, v := range fields {
		if k == "id" || k == "slug" {
			continue
		}
		r[k] = v
	}
	return clone(r), true
}

func (c *collection) delete(key string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.items[key]; !ok {
		return false
	}
	delete(c.items, key)
	delete(c.images, key)
	return true
}

// list returns the records ordered by id, filtered by keep when it is set.
func (c *collection) list(keep func(record) bool) []record {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]record, 0, len(c.items))
	for _, r := range c.items {
		if keep == nil || keep(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["id"].(int) < out[j]["id"].(int) })
	return out
}

func (c *collection) addImage(key string, img record) {
	c.lock.Lock()
	defer c.lock.Unlock()
	img["is_primary"] = len(c.images[key]) == 0
	c.images[key] = append(c.images[key], img)
}

func (c *collection) imagesOf(key string) []record {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]record, 0, len(c.images[key]))
	for _, img := range c.images[key] {
		out = append(out, clone(img))
	}
	return out
}

// setPrimary marks imageID as the only primary image of key.
func (c *collection) setPrimary(key string, imageID int) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	found := false
	for _, img := range c.images[key] {
		if img["id"] == imageID {
			found = true
		}
	}
	if !found {
		return false
	}
	for _, img := range c.images[key] {
		img["is_primary"] = img["id"] == imageID
	}
	return true
}

func (c *collection) deleteImage(key string, imageID int) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	images := c.images[key]
	for i, img := range images {
		if img["id"] == imageID {
			c.images[key] = append(images[:i:i], images[i+1:]...)
			return true
		}
	}
	return false
}

func clone(r record) record {
	out := make(record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
