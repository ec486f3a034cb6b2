package queryfx

import "context"

// Scope selects which entries an invalidation refetches, classified by
// whether the entry currently has active observers.
type Scope string

const (
	// ScopeActive refetches only entries with at least one observer.
	ScopeActive Scope = "active"

	// ScopeInactive refetches only entries without observers.
	ScopeInactive Scope = "inactive"

	// ScopeAll refetches every matching entry.
	ScopeAll Scope = "all"
)

// FetchFunc loads a fresh value for a cache entry. Implementations must
// honor ctx cancellation; a canceled fetch must not be stored.
type FetchFunc func(ctx context.Context) (any, error)

// Store is the cache the library reads and writes through. The reference
// implementation lives in querystore; any cache with these five operations
// can back queries and mutations.
//
// Contract:
//   - Keys are addressed by their canonical form (Key.String()). Two keys
//     with equal canonical forms refer to the same entry.
//   - GetData returns (value, true, nil) on a hit and (nil, false, nil) on
//     a clean miss. Errors are reserved for store-level failures.
//   - SetData upserts the entry and marks it fresh.
//   - RemoveData evicts the entry. Removing an absent entry is a no-op.
//   - CancelInFlight interrupts a pending fetch for the key, returning once
//     cancellation is acknowledged or ctx expires. No pending fetch is a
//     no-op. Callers treat a failure here as advisory.
//   - Invalidate marks every entry matching key as stale and refetches the
//     subset selected by scope, returning after those refetches settle. A
//     method-only key (no request component) matches all entries of that
//     method; otherwise matching is by canonical equality.
type Store interface {
	GetData(ctx context.Context, key Key) (any, bool, error)
	SetData(ctx context.Context, key Key, value any) error
	RemoveData(ctx context.Context, key Key) error
	CancelInFlight(ctx context.Context, key Key) error
	Invalidate(ctx context.Context, key Key, scope Scope) error
}

// Runner is an optional Store capability: single-flight execution of a
// fetch. Concurrent Run calls for the same key share one execution, and the
// stored result is observable through GetData afterward. Query executors
// delegate to Run when the store provides it.
type Runner interface {
	Run(ctx context.Context, key Key, fetch FetchFunc) (any, error)
}
