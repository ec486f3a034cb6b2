package queryfx

import (
	"context"
	"errors"
	"fmt"
)

// QueryOptions configures a Query executor. The zero value is usable.
type QueryOptions[Req, Resp any] struct {
	// Call is the executor-level transport configuration. A context
	// Config layered on top takes precedence at call time.
	Call CallOptions

	// KeyFn overrides cache key derivation. Nil derives the key from the
	// method identifier and the request.
	KeyFn func(req Req) Key

	// Recover substitutes a fallback response for a structured service
	// error. It runs at most once per fetch, at the point the call first
	// resolves, and the substituted response is cached like a real one.
	Recover func(ctx context.Context, se *ServiceError) (Resp, bool)

	Logger Logger
	Hooks  Hooks
}

// Query is the read-side executor for one method: cache first, transport on
// miss, and the fetched response written back through the store.
type Query[Req, Resp any] struct {
	method Method[Req, Resp]
	store  Store
	o      QueryOptions[Req, Resp]
	log    Logger
	hooks  Hooks
}

// NewQuery validates and builds a Query over m backed by store.
func NewQuery[Req, Resp any](m Method[Req, Resp], store Store, o QueryOptions[Req, Resp]) (*Query[Req, Resp], error) {
	if m.MethodID() == "" {
		return nil, fmt.Errorf("queryfx: query: method is required")
	}
	if store == nil {
		return nil, fmt.Errorf("queryfx: query %q: store is required", m.MethodID())
	}
	return &Query[Req, Resp]{
		method: m,
		store:  store,
		o:      o,
		log:    coalesce[Logger](o.Logger, NopLogger{}),
		hooks:  coalesce[Hooks](o.Hooks, NopHooks{}),
	}, nil
}

// Key returns the cache key Fetch would use for req.
func (q *Query[Req, Resp]) Key(req Req) Key {
	if q.o.KeyFn != nil {
		return q.o.KeyFn(req)
	}
	return DeriveKey(q.method.MethodID(), req)
}

// Fetch returns the cached response for req, or performs the transport call
// and caches the result. When the store supports single-flight runs,
// concurrent fetches for the same key share one call.
func (q *Query[Req, Resp]) Fetch(ctx context.Context, req Req) (Resp, error) {
	var zero Resp
	key := q.Key(req)
	ks := key.String()

	v, ok, err := q.store.GetData(ctx, key)
	if err != nil {
		// A broken read falls through to the transport.
		q.log.Warn("cache read failed; fetching", Fields{"key": ks, "err": err})
	} else if ok {
		if resp, hit := v.(Resp); hit {
			return resp, nil
		}
		q.hooks.TypeMismatch(ks)
	}

	fetch := func(fctx context.Context) (any, error) {
		resp, err := q.method.Call(fctx, req, resolveCallOptions(fctx, q.o.Call))
		if err != nil {
			if alt, recovered := q.recover(fctx, err); recovered {
				return alt, nil
			}
			return nil, err
		}
		return resp, nil
	}

	runner, shared := q.store.(Runner)
	if !shared {
		out, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		resp := out.(Resp)
		if err := q.store.SetData(ctx, key, resp); err != nil {
			q.log.Warn("cache write failed", Fields{"key": ks, "err": err})
		}
		return resp, nil
	}

	out, err := runner.Run(ctx, key, fetch)
	if err != nil {
		// A canceled run usually means a mutation patched this entry
		// mid-fetch; the patched value is the resolution.
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			if cur, hit, rerr := q.store.GetData(ctx, key); rerr == nil && hit {
				if resp, okType := cur.(Resp); okType {
					return resp, nil
				}
			}
		}
		return zero, err
	}
	resp, okType := out.(Resp)
	if !okType {
		q.hooks.TypeMismatch(ks)
		return zero, fmt.Errorf("queryfx: query %q: cached value is %T", q.method.MethodID(), out)
	}
	return resp, nil
}

func (q *Query[Req, Resp]) recover(ctx context.Context, err error) (Resp, bool) {
	var zero Resp
	if q.o.Recover == nil {
		return zero, false
	}
	se, ok := AsServiceError(err)
	if !ok {
		return zero, false
	}
	alt, ok := q.o.Recover(ctx, se)
	if !ok {
		return zero, false
	}
	q.hooks.RecoveryApplied(q.method.MethodID(), se.Code)
	q.log.Debug("recovery applied", Fields{"method": q.method.MethodID(), "code": se.Code})
	return alt, true
}
