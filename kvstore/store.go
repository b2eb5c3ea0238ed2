// Package kvstore is the thin client over the networked key-value store that backs every token
// namespace. Implementations must provide atomic per-key get, set, delete and expire.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// NoExpiration is passed to Set to store a key without a time-to-live and is reported by TTL
// for keys that never expire.
const NoExpiration time.Duration = -1

// ErrUnavailable marks connection, timeout and other infrastructure failures of the store.
// It is never returned for a key that is simply absent.
var ErrUnavailable = errors.New("key-value store unavailable")

// Store is the contract the token registry depends on.
type Store interface {
	// Get returns the raw value. A missing key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes the value. A ttl <= 0 stores the key without expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Update overwrites the value of a live key and keeps its remaining time-to-live. It reports
	// false, writing nothing, when the key is absent or expired.
	Update(ctx context.Context, key string, value []byte) (bool, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Expire resets the key's time-to-live and reports false if the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL reports the remaining time-to-live. Keys without expiration report NoExpiration.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)

	// Keys lists every key matching the glob pattern. O(total keys); bulk administrative use only.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	Close() error
}
