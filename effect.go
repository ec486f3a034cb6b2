package queryfx

import (
	"context"
	"fmt"
)

// Snapshot records one entry's state before an optimistic patch: the value
// and whether the entry existed at all. An absent snapshot rolls back to
// removal, not to a zero value.
type Snapshot struct {
	Value   any
	Present bool
}

// RollbackContext maps canonical keys to their pre-mutation snapshots.
// Chained effects merge their fragments into one context; when two effects
// touch the same key the later fragment wins.
type RollbackContext map[string]Snapshot

// InvalidatePolicy selects what happens to an effect's target entries after
// a successful mutation, once any Update has been applied.
type InvalidatePolicy int

const (
	// InvalidateNone leaves the target untouched.
	InvalidateNone InvalidatePolicy = iota

	// InvalidateRemove evicts the target entry outright.
	InvalidateRemove

	// InvalidateActive marks matching entries stale and refetches the
	// ones with active observers.
	InvalidateActive

	// InvalidateInactive marks matching entries stale and refetches the
	// ones without observers.
	InvalidateInactive

	// InvalidateAll marks matching entries stale and refetches them all.
	InvalidateAll
)

func (p InvalidatePolicy) String() string {
	switch p {
	case InvalidateNone:
		return "none"
	case InvalidateRemove:
		return "remove"
	case InvalidateActive:
		return "active"
	case InvalidateInactive:
		return "inactive"
	case InvalidateAll:
		return "all"
	default:
		return fmt.Sprintf("invalidate(%d)", int(p))
	}
}

func (p InvalidatePolicy) scope() Scope {
	switch p {
	case InvalidateInactive:
		return ScopeInactive
	case InvalidateAll:
		return ScopeAll
	default:
		return ScopeActive
	}
}

// Effect applies the cache consequences of one mutation against one target
// method. Prepare runs before the transport call and returns a rollback
// fragment for the entries it touched. Commit runs after a successful call.
// Rollback restores the Prepare-time state after a failed one, reading only
// the fragments for its own keys.
type Effect[Req, Resp any] interface {
	Prepare(ctx context.Context, store Store, req Req) (RollbackContext, error)
	Commit(ctx context.Context, store Store, req Req, resp Resp, rb RollbackContext) error
	Rollback(ctx context.Context, store Store, req Req, rb RollbackContext) error
}

// EffectOptions declares one side effect. Req and Resp are the mutation's
// request and response types; TV is the cached value type of the target
// entry. At least one of Patch, Update, or Invalidate must be set.
type EffectOptions[Req, Resp, TV any] struct {
	// MapKey maps the mutation request to the target method's request,
	// which selects the entry to operate on. Nil means the mutation
	// request itself is the target request. Returning nil selects the
	// method-only key, which invalidation treats as "every entry of the
	// target method".
	MapKey func(req Req) any

	// Patch computes the optimistic value written before the transport
	// call. cur is the current cached value; present reports whether the
	// entry existed with the expected type. An error aborts the mutation
	// before any transport call is made.
	Patch func(cur TV, present bool, req Req) (TV, error)

	// Update folds the server response into the cached value after a
	// successful call. It always runs before any invalidation.
	Update func(cur TV, present bool, resp Resp) (TV, error)

	// Invalidate selects the post-Update treatment of the target.
	Invalidate InvalidatePolicy
}

// NewEffect builds the Effect described by o against target's cache entries.
func NewEffect[Req, Resp, TV any](target Keyed, o EffectOptions[Req, Resp, TV]) (Effect[Req, Resp], error) {
	if target == nil || target.MethodID() == "" {
		return nil, fmt.Errorf("queryfx: effect target is required")
	}
	if o.Invalidate < InvalidateNone || o.Invalidate > InvalidateAll {
		return nil, fmt.Errorf("queryfx: effect %q: unknown invalidate policy %d", target.MethodID(), int(o.Invalidate))
	}
	if o.Patch == nil && o.Update == nil && o.Invalidate == InvalidateNone {
		return nil, fmt.Errorf("queryfx: effect %q: at least one of Patch, Update, or Invalidate is required", target.MethodID())
	}
	return &effect[Req, Resp, TV]{target: target.MethodID(), o: o}, nil
}

type effect[Req, Resp, TV any] struct {
	target string
	o      EffectOptions[Req, Resp, TV]
}

func (e *effect[Req, Resp, TV]) key(req Req) Key {
	if e.o.MapKey != nil {
		return DeriveKey(e.target, e.o.MapKey(req))
	}
	return DeriveKey(e.target, req)
}

func (e *effect[Req, Resp, TV]) Prepare(ctx context.Context, store Store, req Req) (RollbackContext, error) {
	k := e.key(req)
	ks := k.String()

	// Interrupt any pending fetch so a late response cannot overwrite
	// the optimistic value. A failed cancel is advisory only.
	_ = store.CancelInFlight(ctx, k)

	cur, present, err := store.GetData(ctx, k)
	if err != nil {
		return nil, &EffectError{Phase: PhasePrepare, Key: ks, Err: fmt.Errorf("snapshot: %w", err)}
	}
	rb := RollbackContext{ks: {Value: cur, Present: present}}
	if e.o.Patch == nil {
		return rb, nil
	}
	tv, ok := assertValue[TV](cur, present)
	next, err := e.o.Patch(tv, ok, req)
	if err != nil {
		return nil, &EffectError{Phase: PhasePrepare, Key: ks, Err: fmt.Errorf("patch: %w", err)}
	}
	if err := store.SetData(ctx, k, next); err != nil {
		return nil, &EffectError{Phase: PhasePrepare, Key: ks, Err: fmt.Errorf("write patch: %w", err)}
	}
	return rb, nil
}

func (e *effect[Req, Resp, TV]) Commit(ctx context.Context, store Store, req Req, resp Resp, _ RollbackContext) error {
	k := e.key(req)
	ks := k.String()
	if e.o.Update != nil {
		cur, present, err := store.GetData(ctx, k)
		if err != nil {
			return &EffectError{Phase: PhaseCommit, Key: ks, Err: fmt.Errorf("read: %w", err)}
		}
		tv, ok := assertValue[TV](cur, present)
		next, err := e.o.Update(tv, ok, resp)
		if err != nil {
			return &EffectError{Phase: PhaseCommit, Key: ks, Err: fmt.Errorf("update: %w", err)}
		}
		if err := store.SetData(ctx, k, next); err != nil {
			return &EffectError{Phase: PhaseCommit, Key: ks, Err: fmt.Errorf("write update: %w", err)}
		}
	}
	switch e.o.Invalidate {
	case InvalidateNone:
		return nil
	case InvalidateRemove:
		if err := store.RemoveData(ctx, k); err != nil {
			return &EffectError{Phase: PhaseCommit, Key: ks, Err: fmt.Errorf("remove: %w", err)}
		}
		return nil
	default:
		if err := store.Invalidate(ctx, k, e.o.Invalidate.scope()); err != nil {
			return &EffectError{Phase: PhaseCommit, Key: ks, Err: fmt.Errorf("invalidate %s: %w", e.o.Invalidate, err)}
		}
		return nil
	}
}

func (e *effect[Req, Resp, TV]) Rollback(ctx context.Context, store Store, req Req, rb RollbackContext) error {
	k := e.key(req)
	ks := k.String()
	snap, ok := rb[ks]
	if !ok || !snap.Present {
		if err := store.RemoveData(ctx, k); err != nil {
			return &EffectError{Phase: PhaseRollback, Key: ks, Err: fmt.Errorf("restore absent: %w", err)}
		}
		return nil
	}
	if err := store.SetData(ctx, k, snap.Value); err != nil {
		return &EffectError{Phase: PhaseRollback, Key: ks, Err: fmt.Errorf("restore: %w", err)}
	}
	return nil
}

// assertValue narrows a stored value to the effect's cached value type. A
// missing entry, a stored nil, or a value of another type all read as
// absent, so callbacks see a uniform (zero, false) instead of failing.
func assertValue[TV any](v any, present bool) (TV, bool) {
	var zero TV
	if !present || v == nil {
		return zero, false
	}
	tv, ok := v.(TV)
	if !ok {
		return zero, false
	}
	return tv, true
}
