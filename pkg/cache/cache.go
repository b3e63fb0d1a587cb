// Package cache stores merged documents so repeated merges of the same
// inputs skip regeneration and assembly.
//
// Four backends implement [Cache]:
//   - [FileCache]: one JSON file per entry under a directory (CLI default)
//   - [RedisCache]: shared cache for the HTTP service and multi-host runs
//   - [MongoCache]: shared cache in a MongoDB collection with a TTL index
//   - [NullCache]: never stores anything (--no-cache)
//
// Keys are built by a [Keyer] from content hashes, never from file names,
// so the same feeds loaded from different paths share an entry.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored value and whether it was found. A missing or
	// expired entry is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero keeps the entry until it is
	// deleted.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Default time-to-live values per entry kind.
const (
	// TTLMerge applies to merged documents. Feeds are republished daily.
	TTLMerge = 24 * time.Hour

	// TTLGraph applies to rendered reference graphs.
	TTLGraph = 7 * 24 * time.Hour
)
