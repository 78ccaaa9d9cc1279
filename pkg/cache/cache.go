// Package cache provides a small TTL cache for values that are expensive to
// re-read from the page every cycle (order-history snapshots, token symbol).
package cache

import "time"

// Cache is a TTL key-value cache.
type Cache interface {
	// Get retrieves a value. Returns (nil, false) when absent or expired.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL. Admission is best-effort; a false
	// return means the value was not admitted.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Clear removes all values.
	Clear()

	// Close releases cache resources.
	Close()
}

// Well-known keys used by the engine.
const (
	KeyOrderHistorySnapshot = "order-history-snapshot"
	KeyTokenSymbol          = "token-symbol"
)
