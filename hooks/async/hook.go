// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/queryfx"
//	"github.com/unkn0wn-root/queryfx/hooks/async"
//	"github.com/unkn0wn-root/queryfx/querystore"
//	"github.com/unkn0wn-root/queryfx/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    RefetchFailEvery:  10, // sample logs: ~every 10th failed refetch
//	    TypeMismatchEvery: 1,  // log every mismatch
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	store := querystore.New(querystore.Options{
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/queryfx"
)

// Hooks decouples hook delivery from the calling goroutine: events are
// queued and replayed against the wrapped Hooks by worker goroutines.
// Events beyond the queue capacity are dropped, never blocked on.
type Hooks struct {
	inner queryfx.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ queryfx.Hooks = (*Hooks)(nil)

func New(inner queryfx.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) RecoveryApplied(m string, code int) { h.try(func() { h.inner.RecoveryApplied(m, code) }) }
func (h *Hooks) RollbackFailed(m string, err error) { h.try(func() { h.inner.RollbackFailed(m, err) }) }
func (h *Hooks) CancelNotAcked(k string)            { h.try(func() { h.inner.CancelNotAcked(k) }) }
func (h *Hooks) RefetchFailed(k string, err error)  { h.try(func() { h.inner.RefetchFailed(k, err) }) }
func (h *Hooks) TypeMismatch(k string)              { h.try(func() { h.inner.TypeMismatch(k) }) }
