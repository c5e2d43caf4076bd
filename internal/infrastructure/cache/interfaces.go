package cache

import (
	"context"
	"time"
)

// Cache is the key-value layer backing the active-call and
// active-conversation indices. Entities are rehydrated from here on an
// index miss before falling back to the durable store.
type Cache interface {
	// Get retrieves a raw value by key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with optional TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetJSON retrieves and unmarshals JSON data
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// SetJSON marshals and stores JSON data
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Close closes the cache connection
	Close() error
}

// Key prefixes for consistent cache key naming
const (
	CallPrefix         = "fda:call:"
	ConversationPrefix = "fda:conv:"
)

// Common TTL values
const (
	DefaultTTL = 1 * time.Hour
	// Active calls rarely outlive an hour; the durable store is
	// authoritative past that.
	ActiveEntityTTL = 2 * time.Hour
)

// ErrCacheKeyNotFound is returned when a cache key doesn't exist
type ErrCacheKeyNotFound struct {
	Key string
}

func (e ErrCacheKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}
