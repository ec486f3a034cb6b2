package queryfx

import (
	"context"
	"errors"
	"fmt"
)

// MutationOptions configures a Mutation executor. The zero value is usable;
// a mutation with no effects is a plain transport call.
type MutationOptions[Req, Resp any] struct {
	// Call is the executor-level transport configuration. A context
	// Config layered on top takes precedence at call time.
	Call CallOptions

	// Effects run around every Execute, in declaration order. They are
	// chained at construction; nil entries are rejected.
	Effects []Effect[Req, Resp]

	// Recover substitutes a fallback response for a structured service
	// error. It runs at most once per execution, at the point the call
	// first resolves. A recovered execution commits its effects exactly
	// as a real success would.
	Recover func(ctx context.Context, se *ServiceError) (Resp, bool)

	Logger Logger
	Hooks  Hooks
}

// Mutation is the write-side executor for one method. Execute wraps the
// transport call in the effect lifecycle: prepare, call, then commit on
// success or rollback on failure.
type Mutation[Req, Resp any] struct {
	method  Method[Req, Resp]
	store   Store
	effects Effect[Req, Resp]
	o       MutationOptions[Req, Resp]
	log     Logger
	hooks   Hooks
}

// NewMutation validates and builds a Mutation over m backed by store.
func NewMutation[Req, Resp any](m Method[Req, Resp], store Store, o MutationOptions[Req, Resp]) (*Mutation[Req, Resp], error) {
	if m.MethodID() == "" {
		return nil, fmt.Errorf("queryfx: mutation: method is required")
	}
	if store == nil {
		return nil, fmt.Errorf("queryfx: mutation %q: store is required", m.MethodID())
	}
	chained, err := Chain(o.Effects...)
	if err != nil {
		return nil, err
	}
	return &Mutation[Req, Resp]{
		method:  m,
		store:   store,
		effects: chained,
		o:       o,
		log:     coalesce[Logger](o.Logger, NopLogger{}),
		hooks:   coalesce[Hooks](o.Hooks, NopHooks{}),
	}, nil
}

// Execute runs the mutation for req.
//
// Error contract: a Prepare failure aborts before any transport call and
// nothing is rolled back, so writes from effects that prepared earlier stay
// in place. A Commit failure is returned alongside the valid response, since
// the server already accepted the mutation. A failed call returns the call
// error, joined with whatever Rollback could not restore.
func (mu *Mutation[Req, Resp]) Execute(ctx context.Context, req Req) (Resp, error) {
	var zero Resp
	id := mu.method.MethodID()

	rb, err := mu.effects.Prepare(ctx, mu.store, req)
	if err != nil {
		return zero, err
	}

	resp, callErr := mu.method.Call(ctx, req, resolveCallOptions(ctx, mu.o.Call))
	if callErr != nil {
		if alt, recovered := mu.recover(ctx, callErr); recovered {
			resp, callErr = alt, nil
		}
	}

	if callErr == nil {
		if err := mu.effects.Commit(ctx, mu.store, req, resp, rb); err != nil {
			mu.log.Warn("commit failed after successful call", Fields{"method": id, "err": err})
			return resp, err
		}
		return resp, nil
	}

	if rbErr := mu.effects.Rollback(ctx, mu.store, req, rb); rbErr != nil {
		mu.hooks.RollbackFailed(id, rbErr)
		mu.log.Error("rollback incomplete", Fields{"method": id, "err": rbErr})
		return zero, errors.Join(callErr, rbErr)
	}
	return zero, callErr
}

func (mu *Mutation[Req, Resp]) recover(ctx context.Context, err error) (Resp, bool) {
	var zero Resp
	if mu.o.Recover == nil {
		return zero, false
	}
	se, ok := AsServiceError(err)
	if !ok {
		return zero, false
	}
	alt, ok := mu.o.Recover(ctx, se)
	if !ok {
		return zero, false
	}
	mu.hooks.RecoveryApplied(mu.method.MethodID(), se.Code)
	mu.log.Debug("recovery applied", Fields{"method": mu.method.MethodID(), "code": se.Code})
	return alt, true
}
