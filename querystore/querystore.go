// Package querystore provides the reference queryfx.Store: an in-process,
// observer-aware cache with single-flight fetches, scoped invalidation,
// and snapshot dehydration for the persist package.
//
// Entries are addressed by canonical key. Each remembers the fetch
// function that last populated it, so invalidation can refetch without the
// original caller, and how many observers are currently watching it, which
// is what the active/inactive invalidation scopes select on.
package querystore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/queryfx"
)

// Options configures a Cache. The zero value is usable.
type Options struct {
	// Logger receives store-level events. Default: no logging.
	Logger queryfx.Logger

	// Hooks receives high-signal events. Default: no-ops.
	Hooks queryfx.Hooks

	// RefetchLimit caps concurrent refetches per Invalidate call.
	// Default 4.
	RefetchLimit int

	// CancelWait bounds how long CancelInFlight waits for a running
	// fetch to acknowledge cancellation. Default 2s.
	CancelWait time.Duration
}

// Cache is an in-process store of typed values. Cached values are shared
// by reference: readers must treat them as immutable and writers must
// store fresh values rather than mutating in place.
type Cache struct {
	log   queryfx.Logger
	hooks queryfx.Hooks

	refetchLimit int
	cancelWait   time.Duration

	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]*flight
}

type entry struct {
	key       queryfx.Key
	value     any
	present   bool
	stale     bool
	updatedAt time.Time
	observers int
	fetch     queryfx.FetchFunc
}

type flight struct {
	cancel context.CancelFunc
	done   chan struct{}
	val    any
	err    error
}

var (
	_ queryfx.Store  = (*Cache)(nil)
	_ queryfx.Runner = (*Cache)(nil)
)

func New(opts Options) *Cache {
	c := &Cache{
		log:          opts.Logger,
		hooks:        opts.Hooks,
		refetchLimit: opts.RefetchLimit,
		cancelWait:   opts.CancelWait,
		entries:      make(map[string]*entry),
		inflight:     make(map[string]*flight),
	}
	if c.log == nil {
		c.log = queryfx.NopLogger{}
	}
	if c.hooks == nil {
		c.hooks = queryfx.NopHooks{}
	}
	if c.refetchLimit <= 0 {
		c.refetchLimit = 4
	}
	if c.cancelWait <= 0 {
		c.cancelWait = 2 * time.Second
	}
	return c
}

func (c *Cache) ensureLocked(key queryfx.Key) *entry {
	ks := key.String()
	e := c.entries[ks]
	if e == nil {
		e = &entry{key: key}
		c.entries[ks] = e
	}
	return e
}

// GetData returns the cached value for key. Stale entries still hit;
// staleness only drives refetching.
func (c *Cache) GetData(_ context.Context, key queryfx.Key) (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key.String()]
	if e == nil || !e.present {
		return nil, false, nil
	}
	return e.value, true, nil
}

// SetData upserts the entry and marks it fresh.
func (c *Cache) SetData(_ context.Context, key queryfx.Key, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensureLocked(key)
	e.value = value
	e.present = true
	e.stale = false
	e.updatedAt = time.Now()
	return nil
}

// RemoveData evicts the entry and abandons any in-flight fetch for it, so
// a late response cannot resurrect the removed value.
func (c *Cache) RemoveData(_ context.Context, key queryfx.Key) error {
	ks := key.String()
	c.mu.Lock()
	delete(c.entries, ks)
	if f := c.inflight[ks]; f != nil {
		// Canceled under the lock. Run re-checks the flight context under
		// the same lock before storing.
		f.cancel()
	}
	c.mu.Unlock()
	return nil
}

// CancelInFlight interrupts a pending fetch for key and waits for it to
// acknowledge, bounded by ctx and by CancelWait. No pending fetch is a
// no-op. A wait that times out returns nil after signaling hooks, since
// the canceled fetch can no longer store its result anyway.
func (c *Cache) CancelInFlight(ctx context.Context, key queryfx.Key) error {
	ks := key.String()
	c.mu.Lock()
	f := c.inflight[ks]
	if f != nil {
		// Raised under the lock so Run's store check observes it. The
		// ack wait below must stay outside: Run closes done only after
		// passing through this lock again.
		f.cancel()
	}
	c.mu.Unlock()
	if f == nil {
		return nil
	}

	t := time.NewTimer(c.cancelWait)
	defer t.Stop()
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		c.hooks.CancelNotAcked(ks)
		return ctx.Err()
	case <-t.C:
		c.hooks.CancelNotAcked(ks)
		c.log.Warn("in-flight fetch did not acknowledge cancel", queryfx.Fields{"key": ks})
		return nil
	}
}

// Run executes fetch under single-flight for key: concurrent Runs for the
// same key share the first caller's execution and result. On success the
// value is stored and the entry marked fresh. A fetch canceled through
// CancelInFlight or RemoveData resolves with the cancellation error and
// stores nothing, even if it had already produced a value.
func (c *Cache) Run(ctx context.Context, key queryfx.Key, fetch queryfx.FetchFunc) (any, error) {
	if fetch == nil {
		return nil, fmt.Errorf("queryfx: querystore: nil fetch for %s", key)
	}
	ks := key.String()

	c.mu.Lock()
	if f := c.inflight[ks]; f != nil {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	cctx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel, done: make(chan struct{})}
	c.inflight[ks] = f
	e := c.ensureLocked(key)
	e.fetch = fetch
	c.mu.Unlock()

	val, err := fetch(cctx)

	c.mu.Lock()
	if c.inflight[ks] == f {
		delete(c.inflight, ks)
	}
	// Checked under the lock: RemoveData and CancelInFlight raise the
	// cancel while holding it, so a canceled flight never stores, even
	// when its fetch already returned a value.
	if err == nil && cctx.Err() != nil {
		err = cctx.Err()
	}
	if err == nil {
		e := c.ensureLocked(key)
		e.value = val
		e.present = true
		e.stale = false
		e.updatedAt = time.Now()
	}
	c.mu.Unlock()

	f.val, f.err = val, err
	cancel()
	close(f.done)
	return val, err
}

// Observe registers an active observer for key, optionally recording fetch
// as the entry's refetch function. The returned release is idempotent.
func (c *Cache) Observe(key queryfx.Key, fetch queryfx.FetchFunc) (release func()) {
	ks := key.String()
	c.mu.Lock()
	e := c.ensureLocked(key)
	e.observers++
	if fetch != nil {
		e.fetch = fetch
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if e := c.entries[ks]; e != nil && e.observers > 0 {
				e.observers--
			}
			c.mu.Unlock()
		})
	}
}

// Invalidate marks every entry matching key stale, then synchronously
// refetches the subset selected by scope, bounded by RefetchLimit at a
// time. A method-only key matches all entries of that method; a full key
// matches by canonical equality. Entries without a recorded fetch function
// are only marked stale. Failed refetches leave their entries stale and
// surface through the returned error and hooks.
func (c *Cache) Invalidate(ctx context.Context, key queryfx.Key, scope queryfx.Scope) error {
	if scope == "" {
		scope = queryfx.ScopeActive
	}
	switch scope {
	case queryfx.ScopeActive, queryfx.ScopeInactive, queryfx.ScopeAll:
	default:
		return fmt.Errorf("queryfx: querystore: unknown scope %q", scope)
	}

	ks := key.String()
	methodOnly := !key.HasRequest()

	type target struct {
		key   queryfx.Key
		fetch queryfx.FetchFunc
	}
	var targets []target

	c.mu.Lock()
	for eks, e := range c.entries {
		if methodOnly {
			if e.key.Method != key.Method {
				continue
			}
		} else if eks != ks {
			continue
		}
		e.stale = true
		if e.fetch == nil || !scopeMatch(scope, e.observers) {
			continue
		}
		targets = append(targets, target{key: e.key, fetch: e.fetch})
	}
	c.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	g := new(errgroup.Group)
	g.SetLimit(c.refetchLimit)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if _, err := c.Run(ctx, t.key, t.fetch); err != nil {
				c.hooks.RefetchFailed(t.key.String(), err)
				c.log.Warn("refetch failed; entry stays stale", queryfx.Fields{"key": t.key.String(), "err": err})
				return fmt.Errorf("queryfx: refetch %s: %w", t.key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func scopeMatch(scope queryfx.Scope, observers int) bool {
	switch scope {
	case queryfx.ScopeActive:
		return observers > 0
	case queryfx.ScopeInactive:
		return observers == 0
	default:
		return true
	}
}

// IsStale reports whether key's entry holds data and is marked stale.
func (c *Cache) IsStale(key queryfx.Key) (stale, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key.String()]
	if e == nil || !e.present {
		return false, false
	}
	return e.stale, true
}

// Len reports the number of entries currently holding data.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.present {
			n++
		}
	}
	return n
}
