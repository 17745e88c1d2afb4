package cache

import "strings"

// Key addresses a cached resource, e.g. Key{"motorcycle", "42"} or Key{"motorcycles"}.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether prefix matches the leading elements of k. Every key has the
// empty key as a prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) id() string {
	return strings.Join(k, "\x1f")
}
