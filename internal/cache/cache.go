// Package cache memoizes query results keyed by a fingerprint of the
// normalized SQL, bound parameters, and row limit. Entries are process-local
// and never persisted.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/starford/ansuz/internal/query"
)

type entry struct {
	result     *query.Result
	generation uint64
	storedAt   time.Time
}

// Cache is a size-bounded LRU with a TTL backstop. Validity is decided by
// the store's generation counter: an entry captured at an older generation
// is a stale miss and is evicted lazily on lookup.
type Cache struct {
	lru *expirable.LRU[string, entry]
}

const (
	DefaultSize = 256
	DefaultTTL  = 5 * time.Minute
)

// New creates a cache holding at most size entries for at most ttl each.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{lru: expirable.NewLRU[string, entry](size, nil, ttl)}
}

// Fingerprint derives the cache key from the normalized query text, its
// parameters, and the requested limit.
func Fingerprint(sqlText string, params []any, limit int) string {
	h := sha256.New()
	h.Write([]byte(normalizeSQL(sqlText)))
	h.Write([]byte{0})
	for _, p := range params {
		fmt.Fprintf(h, "%T=%v", p, p)
		h.Write([]byte{0})
	}
	fmt.Fprintf(h, "limit=%d", limit)
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeSQL collapses whitespace runs so formatting differences do not
// split cache entries.
func normalizeSQL(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// Lookup returns the cached result when the entry exists and was captured at
// the current generation. Stale entries are removed on the spot.
func (c *Cache) Lookup(fingerprint string, generation uint64) (*query.Result, bool) {
	e, ok := c.lru.Get(fingerprint)
	if !ok {
		return nil, false
	}
	if e.generation != generation {
		c.lru.Remove(fingerprint)
		return nil, false
	}
	return e.result, true
}

// Store records a result captured at the given generation.
func (c *Cache) Store(fingerprint string, generation uint64, result *query.Result) {
	c.lru.Add(fingerprint, entry{
		result:     result,
		generation: generation,
		storedAt:   time.Now(),
	})
}

// Len returns the current entry count.
func (c *Cache) Len() int { return c.lru.Len() }

// Purge drops every entry.
func (c *Cache) Purge() { c.lru.Purge() }
