package queryfx

import (
	"context"
	"fmt"
)

// Caller performs the transport call for one service method. Generated
// clients are wrapped into Callers (see transport.NewCaller for the HTTP
// flavor); tests substitute plain functions.
type Caller[Req, Resp any] func(ctx context.Context, req Req, opts CallOptions) (Resp, error)

// Keyed is anything addressable as a side-effect target: it names the
// method whose cache entries the effect operates on. Method implements it
// for any request/response pair.
type Keyed interface {
	MethodID() string
}

// Method binds a method identifier to its transport caller. The identifier
// is the first element of every cache key derived for the method, so it
// must be stable across builds ("users.list", not a function pointer).
type Method[Req, Resp any] struct {
	id   string
	call Caller[Req, Resp]
}

// NewMethod validates and builds a Method.
func NewMethod[Req, Resp any](id string, call Caller[Req, Resp]) (Method[Req, Resp], error) {
	if id == "" {
		return Method[Req, Resp]{}, fmt.Errorf("queryfx: method id is required")
	}
	if call == nil {
		return Method[Req, Resp]{}, fmt.Errorf("queryfx: method %q: caller is required", id)
	}
	return Method[Req, Resp]{id: id, call: call}, nil
}

// MethodID returns the stable method identifier.
func (m Method[Req, Resp]) MethodID() string { return m.id }

// Key derives the cache key for a request against this method. A nil req
// yields the method-only key.
func (m Method[Req, Resp]) Key(req any) Key { return DeriveKey(m.id, req) }

// Call invokes the underlying transport caller.
func (m Method[Req, Resp]) Call(ctx context.Context, req Req, opts CallOptions) (Resp, error) {
	return m.call(ctx, req, opts)
}
