package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quillforge/lodestone/store"
)

// queryCache memoizes final result lists keyed by the full request shape
// plus a generation counter. Bumping the generation after an index write
// orphans every live entry at once; the LRU evicts the stale keys over time.
type queryCache struct {
	lru *lru.Cache[string, []Result]
	gen atomic.Uint64
}

// newQueryCache returns nil when size disables caching; all methods are
// nil-receiver safe so callers never branch.
func newQueryCache(size int) *queryCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, []Result](size)
	if err != nil {
		return nil
	}
	return &queryCache{lru: c}
}

func (c *queryCache) key(query string, scope store.Scope, topK int, activePath string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%s\x00%d\x00%s\x00%s\x00%s\x00%s\x00%s",
		c.gen.Load(), query, topK,
		scope.Path, scope.Folder,
		strings.Join(scope.AllowIDs, ","), strings.Join(scope.DenyIDs, ","),
		activePath)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *queryCache) get(query string, scope store.Scope, topK int, activePath string) ([]Result, bool) {
	if c == nil {
		return nil, false
	}
	cached, ok := c.lru.Get(c.key(query, scope, topK, activePath))
	if !ok {
		return nil, false
	}
	out := make([]Result, len(cached))
	copy(out, cached)
	return out, true
}

func (c *queryCache) put(query string, scope store.Scope, topK int, activePath string, results []Result) {
	if c == nil {
		return
	}
	// Store a copy so later caller mutations cannot leak into the cache.
	c.lru.Add(c.key(query, scope, topK, activePath), append([]Result(nil), results...))
}

func (c *queryCache) invalidate() {
	if c == nil {
		return
	}
	c.gen.Add(1)
}
