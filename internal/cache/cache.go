// Package cache provides the time-bounded read-through cache used for catalogue lookups.
package cache

import (
	"context"
	"time"
)

// keyNamespace prefixes every key written by this service.
const keyNamespace = "partshop"

// Store is a byte-oriented key/value store with per-entry TTL.
type Store interface {
	// Get returns the value and true, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Close releases resources held by the store.
	Close() error
}

// Key builds a namespaced cache key.
func Key(parts ...string) string {
	key := keyNamespace
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
