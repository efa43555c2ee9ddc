// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Random abstracts randomness for testability.
type Random interface {
	// Bytes generates n random bytes.
	Bytes(n int) ([]byte, error)
	// String generates a random string of n characters.
	String(n int) (string, error)
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher hashes and verifies secrets, such as the API bearer token.
type Hasher interface {
	// Hash generates a hash of plaintext.
	Hash(plaintext string) ([]byte, error)
	// Compare reports whether plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// DocumentStore is the key-value boundary every storage backend implements.
// Keys are opaque strings namespaced by the model layer as
// "<namespace>:<collection>:<id>"; values are encoded documents. A backend
// stores bytes and knows nothing about schemas or filters.
//
// Errors returned from any method mean the repository is unavailable or
// misbehaving; callers propagate them unchanged and never retry.
type DocumentStore interface {
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Get retrieves the value for key. A missing key is not an error:
	// it returns (nil, nil).
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key and reports whether it existed. Deleting a
	// missing key is not an error.
	Delete(ctx context.Context, key string) (bool, error)

	// Keys lists every key with the given prefix, in lexicographic order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection. Safe to call once.
	Close() error
}
