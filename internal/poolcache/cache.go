// Package poolcache keeps a hot in-process copy of persisted pool state so a
// single processing pass doesn't re-read the store. The cache is advisory:
// a miss means "re-read the persisted store", never an error, and every
// successful store write must be followed by MergePartial so the copy cannot
// silently diverge within the process lifetime.
package poolcache

import (
	"fmt"
	"strings"
	"sync"

	"marketscope/internal/model"
)

// Cache holds pool entries keyed by "chainId:address" with the address
// lowercased. Entries live for the process lifetime; there is no TTL and no
// eviction beyond explicit overwrite.
type Cache struct {
	mu   sync.RWMutex
	data map[string]model.Pool
}

func New() *Cache {
	return &Cache{data: make(map[string]model.Pool)}
}

// Key builds the canonical cache key.
func Key(chainID uint64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(address))
}

// Get returns a copy of the cached pool, if present.
func (c *Cache) Get(chainID uint64, address string) (model.Pool, bool) {
	c.mu.RLock()
	pool, ok := c.data[Key(chainID, address)]
	c.mu.RUnlock()
	return pool, ok
}

// Set stores the pool, overwriting any existing entry.
func (c *Cache) Set(pool model.Pool) {
	c.mu.Lock()
	c.data[Key(pool.ChainID, pool.Address)] = pool
	c.mu.Unlock()
}

// MergePartial shallow-merges non-nil patch fields into an existing entry.
// A missing entry makes this a no-op and returns false.
func (c *Cache) MergePartial(chainID uint64, address string, patch model.PoolPatch) bool {
	key := Key(chainID, address)
	c.mu.Lock()
	defer c.mu.Unlock()
	pool, ok := c.data[key]
	if !ok {
		return false
	}
	patch.Apply(&pool)
	c.data[key] = pool
	return true
}

// Has reports whether the pool is cached.
func (c *Cache) Has(chainID uint64, address string) bool {
	c.mu.RLock()
	_, ok := c.data[Key(chainID, address)]
	c.mu.RUnlock()
	return ok
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	n := len(c.data)
	c.mu.RUnlock()
	return n
}
