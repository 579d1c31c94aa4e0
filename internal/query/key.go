package query

import (
	"slices"
	"strings"
)

// Key identifies a cached query as (kind, operation, parameters...).
type Key []string

// NewKey builds a key from segments.
func NewKey(parts ...string) Key {
	return Key(slices.Clone(parts))
}

// With returns a copy of k extended by parts.
func (k Key) With(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// HasPrefix reports whether every segment of prefix leads k.
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

// Kind is the first segment, used as the metrics label.
func (k Key) Kind() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

// id is the map key. The unit separator cannot appear in addresses or ids.
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}
