package queryfx

import (
	"context"
	"errors"
	"fmt"
)

// Chain composes effects into a single Effect that runs them in declaration
// order. Prepare and Commit are sequential and fail fast: the first error
// stops the pass and earlier effects' writes stay in place. Rollback runs
// every effect regardless of individual failures and returns them joined.
//
// Each invocation builds a fresh rollback context, so concurrent mutations
// through the same chain never share state. Nil effects are rejected at
// construction instead of being skipped at call time.
func Chain[Req, Resp any](effects ...Effect[Req, Resp]) (Effect[Req, Resp], error) {
	for i, e := range effects {
		if e == nil {
			return nil, fmt.Errorf("queryfx: chain: effect %d is nil", i)
		}
	}
	cp := make(chain[Req, Resp], len(effects))
	copy(cp, effects)
	return cp, nil
}

type chain[Req, Resp any] []Effect[Req, Resp]

func (c chain[Req, Resp]) Prepare(ctx context.Context, store Store, req Req) (RollbackContext, error) {
	rb := make(RollbackContext, len(c))
	for _, e := range c {
		frag, err := e.Prepare(ctx, store, req)
		if err != nil {
			return nil, err
		}
		for k, snap := range frag {
			rb[k] = snap
		}
	}
	return rb, nil
}

func (c chain[Req, Resp]) Commit(ctx context.Context, store Store, req Req, resp Resp, rb RollbackContext) error {
	for _, e := range c {
		if err := e.Commit(ctx, store, req, resp, rb); err != nil {
			return err
		}
	}
	return nil
}

func (c chain[Req, Resp]) Rollback(ctx context.Context, store Store, req Req, rb RollbackContext) error {
	var errs []error
	for _, e := range c {
		if err := e.Rollback(ctx, store, req, rb); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
