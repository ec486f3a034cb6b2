package queryfx

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Executors and stores call them on hot paths.
type Hooks interface {
	// A recovery function turned a structured service error into a
	// fallback response. code is the recovered error's status code.
	RecoveryApplied(method string, code int)

	// Rollback after a failed mutation did not fully restore the cache.
	// Entries may still hold optimistic values.
	RollbackFailed(method string, err error)

	// CancelInFlight gave up waiting for a fetch to acknowledge
	// cancellation. The stale fetch may still complete.
	CancelNotAcked(key string)

	// A refetch triggered by invalidation failed. The entry stays stale.
	RefetchFailed(key string, err error)

	// A cached value did not have the expected type and was treated as
	// absent (typically after hydrating a persisted snapshot).
	TypeMismatch(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) RecoveryApplied(string, int)  {}
func (NopHooks) RollbackFailed(string, error) {}
func (NopHooks) CancelNotAcked(string)        {}
func (NopHooks) RefetchFailed(string, error)  {}
func (NopHooks) TypeMismatch(string)          {}
