package queryfx

import (
	"context"
	"errors"
	"testing"
)

// ==============================
// Query executor tests
// ==============================

// runnerStore adds a minimal single-flight Run to memStore. The real
// implementation lives in querystore; this fake only records delegation.
type runnerStore struct {
	*memStore
}

var (
	_ Store  = (*runnerStore)(nil)
	_ Runner = (*runnerStore)(nil)
)

func (s *runnerStore) Run(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	s.mu.Lock()
	s.ops = append(s.ops, "run "+key.String())
	s.mu.Unlock()
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.SetData(ctx, key, v); err != nil {
		return nil, err
	}
	return v, nil
}

// patchingRunner simulates a fetch canceled by a concurrent optimistic
// patch: Run writes the patched value and reports cancellation.
type patchingRunner struct {
	*memStore
	patched any
}

var _ Runner = (*patchingRunner)(nil)

func (s *patchingRunner) Run(ctx context.Context, key Key, _ FetchFunc) (any, error) {
	_ = s.SetData(ctx, key, s.patched)
	return nil, context.Canceled
}

func TestNewQueryValidation(t *testing.T) {
	if _, err := NewQuery(Method[userReq, userView]{}, newMemStore(), QueryOptions[userReq, userView]{}); err == nil {
		t.Fatalf("expected error for zero method")
	}
	if _, err := NewQuery(newTestMethod[userReq, userView](t, "users.get"), nil, QueryOptions[userReq, userView]{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestQueryFetchMissCallsAndCaches(t *testing.T) {
	store := newMemStore()
	var calls int
	method, err := NewMethod("users.get", func(_ context.Context, req userReq, _ CallOptions) (userView, error) {
		calls++
		return userView{ID: req.ID, Name: "fetched"}, nil
	})
	if err != nil {
		t.Fatalf("new method: %v", err)
	}
	q, err := NewQuery(method, store, QueryOptions[userReq, userView]{})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}

	resp, err := q.Fetch(context.Background(), userReq{ID: 1})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.Name != "fetched" || calls != 1 {
		t.Fatalf("expected one transport call, got resp=%+v calls=%d", resp, calls)
	}
	if v, ok := store.value(q.Key(userReq{ID: 1})); !ok || v.(userView).Name != "fetched" {
		t.Fatalf("fetched value must be cached, got %v present=%v", v, ok)
	}
}

// A cache hit never reaches the transport.
func TestQueryFetchHitSkipsCall(t *testing.T) {
	store := newMemStore()
	method := newTestMethod[userReq, userView](t, "users.get")
	store.seed(method.Key(userReq{ID: 1}), userView{ID: 1, Name: "cached"})

	q, err := NewQuery(method, store, QueryOptions[userReq, userView]{})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}
	resp, err := q.Fetch(context.Background(), userReq{ID: 1})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.Name != "cached" {
		t.Fatalf("expected the cached value, got %+v", resp)
	}
}

// A cached value of the wrong type counts as a miss and gets replaced.
func TestQueryFetchWrongTypeRefetches(t *testing.T) {
	store := newMemStore()
	hooks := &recHooks{}
	method, err := NewMethod("users.get", func(_ context.Context, req userReq, _ CallOptions) (userView, error) {
		return userView{ID: req.ID, Name: "fresh"}, nil
	})
	if err != nil {
		t.Fatalf("new method: %v", err)
	}
	key := method.Key(userReq{ID: 1})
	store.seed(key, "stale string")

	q, err := NewQuery(method, store, QueryOptions[userReq, userView]{Hooks: hooks})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}
	resp, err := q.Fetch(context.Background(), userReq{ID: 1})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.Name != "fresh" {
		t.Fatalf("expected a refetched value, got %+v", resp)
	}
	if len(hooks.mismatches) != 1 || hooks.mismatches[0] != key.String() {
		t.Fatalf("expected one type-mismatch hook for %s, got %v", key.String(), hooks.mismatches)
	}
	if v, _ := store.value(key); v.(userView).Name != "fresh" {
		t.Fatalf("the stale entry must be overwritten, got %v", v)
	}
}

func TestQueryFetchCallErrorPropagates(t *testing.T) {
	store := newMemStore()
	callErr := errors.New("connection reset")
	method, err := NewMethod("users.get", func(context.Context, userReq, CallOptions) (userView, error) {
		return userView{}, callErr
	})
	if err != nil {
		t.Fatalf("new method: %v", err)
	}
	q, err := NewQuery(method, store, QueryOptions[userReq, userView]{})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}

	if _, err := q.Fetch(context.Background(), userReq{ID: 1}); !errors.Is(err, callErr) {
		t.Fatalf("expected the transport error, got %v", err)
	}
	if store.opIndex("set") != -1 {
		t.Fatalf("a failed fetch must not cache, ops: %v", store.opLog())
	}
}

// TestQueryRecoverCachesFallback: a recovered fetch behaves like a real
// success, including the cache write, on both store flavors.
func TestQueryRecoverCachesFallback(t *testing.T) {
	newQuery := func(t *testing.T, store Store, hooks Hooks) *Query[userReq, userView] {
		t.Helper()
		method, err := NewMethod("users.get", func(context.Context, userReq, CallOptions) (userView, error) {
			return userView{}, &ServiceError{Code: 404, CodeName: "NOT_FOUND", Message: "no such user"}
		})
		if err != nil {
			t.Fatalf("new method: %v", err)
		}
		q, err := NewQuery(method, store, QueryOptions[userReq, userView]{
			Recover: func(_ context.Context, se *ServiceError) (userView, bool) {
				if se.Code != 404 {
					return userView{}, false
				}
				return userView{ID: 1, Name: "placeholder"}, true
			},
			Hooks: hooks,
		})
		if err != nil {
			t.Fatalf("new query: %v", err)
		}
		return q
	}

	t.Run("plain_store", func(t *testing.T) {
		store := newMemStore()
		hooks := &recHooks{}
		q := newQuery(t, store, hooks)
		resp, err := q.Fetch(context.Background(), userReq{ID: 1})
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if resp.Name != "placeholder" {
			t.Fatalf("expected the fallback, got %+v", resp)
		}
		if v, ok := store.value(q.Key(userReq{ID: 1})); !ok || v.(userView).Name != "placeholder" {
			t.Fatalf("the fallback must be cached, got %v present=%v", v, ok)
		}
		if len(hooks.recovered) != 1 || hooks.recovered[0] != "users.get:404" {
			t.Fatalf("expected one recovery hook, got %v", hooks.recovered)
		}
	})

	t.Run("runner_store", func(t *testing.T) {
		store := &runnerStore{memStore: newMemStore()}
		hooks := &recHooks{}
		q := newQuery(t, store, hooks)
		resp, err := q.Fetch(context.Background(), userReq{ID: 1})
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if resp.Name != "placeholder" {
			t.Fatalf("expected the fallback, got %+v", resp)
		}
		// Recovery happens inside the shared fetch, so the run stores the
		// fallback like any fetched value.
		if v, ok := store.value(q.Key(userReq{ID: 1})); !ok || v.(userView).Name != "placeholder" {
			t.Fatalf("the fallback must be cached through the run, got %v present=%v", v, ok)
		}
	})
}

func TestQueryKeyFnOverride(t *testing.T) {
	store := newMemStore()
	method, err := NewMethod("users.get", func(_ context.Context, req userReq, _ CallOptions) (userView, error) {
		return userView{ID: req.ID}, nil
	})
	if err != nil {
		t.Fatalf("new method: %v", err)
	}
	custom := DeriveKey("users.get", map[string]any{"tenant": "acme", "id": 1})
	q, err := NewQuery(method, store, QueryOptions[userReq, userView]{
		KeyFn: func(userReq) Key { return custom },
	})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}

	if got := q.Key(userReq{ID: 1}); got.String() != custom.String() {
		t.Fatalf("KeyFn must drive key derivation, got %s", got.String())
	}
	if _, err := q.Fetch(context.Background(), userReq{ID: 1}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, ok := store.value(custom); !ok {
		t.Fatalf("value must be stored under the overridden key")
	}
}

// A broken cache read degrades to a fetch instead of failing the caller.
func TestQueryReadErrorFallsThrough(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("cache offline")
	method, err := NewMethod("users.get", func(_ context.Context, req userReq, _ CallOptions) (userView, error) {
		return userView{ID: req.ID, Name: "fetched"}, nil
	})
	if err != nil {
		t.Fatalf("new method: %v", err)
	}
	q, err := NewQuery(method, store, QueryOptions[userReq, userView]{})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}

	resp, err := q.Fetch(context.Background(), userReq{ID: 1})
	if err != nil {
		t.Fatalf("fetch should survive a read error, got %v", err)
	}
	if resp.Name != "fetched" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

// TestQueryRunnerDelegates: stores that implement Runner get the fetch
// handed to Run, and a later fetch hits the stored result.
func TestQueryRunnerDelegates(t *testing.T) {
	store := &runnerStore{memStore: newMemStore()}
	var calls int
	method, err := NewMethod("users.get", func(_ context.Context, req userReq, _ CallOptions) (userView, error) {
		calls++
		return userView{ID: req.ID, Name: "fetched"}, nil
	})
	if err != nil {
		t.Fatalf("new method: %v", err)
	}
	q, err := NewQuery(method, store, QueryOptions[userReq, userView]{})
	if err != nil {
		t.Fatalf("new query: %v", err)
	}

	if _, err := q.Fetch(context.Background(), userReq{ID: 1}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if store.opIndex("run") == -1 {
		t.Fatalf("expected delegation to Run, ops: %v", store.opLog())
	}
	if _, err := q.Fetch(context.Background(), userReq{ID: 1}); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("second fetch must hit the cache, calls=%d", calls)
	}
}

// TestQueryCanceledRunResolvesPatched: when a run is canceled underneath the
// caller (a mutation patched the entry mid-fetch), the patched value is the
// result. A cancellation of the caller's own context stays an error.
func TestQueryCanceledRunResolvesPatched(t *testing.T) {
	method := newTestMethod[userReq, userView](t, "users.get")

	t.Run("patched_mid_fetch", func(t *testing.T) {
		store := &patchingRunner{
			memStore: newMemStore(),
			patched:  userView{ID: 1, Name: "patched"},
		}
		q, err := NewQuery[userReq, userView](method, store, QueryOptions[userReq, userView]{})
		if err != nil {
			t.Fatalf("new query: %v", err)
		}
		resp, err := q.Fetch(context.Background(), userReq{ID: 1})
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if resp.Name != "patched" {
			t.Fatalf("expected the patched value, got %+v", resp)
		}
	})

	t.Run("caller_canceled", func(t *testing.T) {
		store := &patchingRunner{
			memStore: newMemStore(),
			patched:  userView{ID: 1, Name: "patched"},
		}
		q, err := NewQuery[userReq, userView](method, store, QueryOptions[userReq, userView]{})
		if err != nil {
			t.Fatalf("new query: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := q.Fetch(ctx, userReq{ID: 1}); !errors.Is(err, context.Canceled) {
			t.Fatalf("a canceled caller keeps the error, got %v", err)
		}
	})
}
