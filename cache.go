package dbal

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface for caching query results.
// Users may implement this interface with their preferred caching solution
// (e.g., Redis, Memcached); NewLRUCache provides an in-memory default.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies one executed statement in the cache.
type CacheKey struct {
	Table     string
	Statement string
	Args      string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return k.Table + ":" + k.Statement + ":" + k.Args
}

// TablePrefix returns the key prefix shared by all cached statements
// against the table, used for invalidation on writes.
func TablePrefix(table string) string {
	return table + ":"
}

// RowSet is the serializable form of a materialized query result:
// the ordered column list plus one map per row.
type RowSet struct {
	Columns []string         `msgpack:"columns"`
	Rows    []map[string]any `msgpack:"rows"`
}

// EncodeRows serializes a row set for cache storage.
func EncodeRows(rs RowSet) ([]byte, error) {
	return msgpack.Marshal(rs)
}

// DecodeRows deserializes a row set from cache storage.
func DecodeRows(data []byte) (RowSet, error) {
	var rs RowSet
	err := msgpack.Unmarshal(data, &rs)
	return rs, err
}

// LRUCache is an in-memory Cache backed by an expirable LRU.
// Entries share one TTL fixed at construction; the per-call ttl argument
// is ignored beyond zero/non-zero semantics.
type LRUCache struct {
	mu  sync.Mutex
	lru *lru.LRU[string, []byte]
}

// NewLRUCache returns an LRUCache holding at most size entries, each
// expiring after ttl. A ttl of 0 disables expiry.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: lru.NewLRU[string, []byte](size, nil, ttl)}
}

// Get retrieves a value from the cache.
func (c *LRUCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Set stores a value in the cache.
func (c *LRUCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, value)
	return nil
}

// Delete removes a value from the cache.
func (c *LRUCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	return nil
}

// DeletePrefix removes all values with the given prefix.
func (c *LRUCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
	return nil
}

// Clear removes all values from the cache.
func (c *LRUCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	return nil
}

var _ Cache = (*LRUCache)(nil)
