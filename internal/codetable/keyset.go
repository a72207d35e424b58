package codetable

import (
	"strings"

	"github.com/zeebo/xxh3"
)

// Delimiter joins the components of a composite key. It is a character that
// never occurs in observation data, so joined keys cannot collide.
const Delimiter = "∿"

// JoinKey serializes an ordered key tuple.
func JoinKey(parts []string) string { return strings.Join(parts, Delimiter) }

// KeySet is a set of serialized keys. Keys are bucketed by their xxh3 hash;
// each bucket keeps the full strings so membership is exact.
type KeySet struct {
	buckets map[uint64][]string
	n       int
}

// NewKeySet returns an empty set.
func NewKeySet() *KeySet { return &KeySet{buckets: make(map[uint64][]string)} }

// Add inserts key; duplicates are ignored.
func (s *KeySet) Add(key string) {
	h := xxh3.HashString(key)
	for _, k := range s.buckets[h] {
		if k == key {
			return
		}
	}
	s.buckets[h] = append(s.buckets[h], key)
	s.n++
}

// Contains reports whether key is in the set.
func (s *KeySet) Contains(key string) bool {
	for _, k := range s.buckets[xxh3.HashString(key)] {
		if k == key {
			return true
		}
	}
	return false
}

// Len returns the number of distinct keys.
func (s *KeySet) Len() int { return s.n }

// Keys returns every key in unspecified order.
func (s *KeySet) Keys() []string {
	out := make([]string, 0, s.n)
	for _, b := range s.buckets {
		out = append(out, b...)
	}
	return out
}
