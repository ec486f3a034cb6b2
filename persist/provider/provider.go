// Package provider defines the byte-store abstraction cache snapshots are
// persisted to.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the []byte previously passed to Set for the same key (no prepended or
// appended metadata, no re-encoding, no mutation). If a store performs
// internal transforms such as compression, they must be fully reversed.
//
// The storage key configured on a Persister is owned by it. Foreign writes
// under that key fail frame validation and are deleted on the next read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl <= 0 means no expiry where
	// the store supports it. A rejected or failed write returns an error;
	// unlike a read-through cache, a dropped snapshot write must not pass
	// silently.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
