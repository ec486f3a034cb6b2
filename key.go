package queryfx

import (
	"encoding/json"

	"github.com/unkn0wn-root/queryfx/internal/keyutil"
)

// Key identifies a single cache entry. It pairs a service method identifier
// with the request value that parameterized the call. The zero request (nil,
// or a typed nil pointer) yields a method-only key, which also acts as a
// selector for every entry of that method when passed to Store.Invalidate.
type Key struct {
	// Method is the fully qualified method identifier, e.g. "users.list".
	Method string

	// Request is the request value the entry was fetched with. May be nil.
	Request any
}

// DeriveKey builds the Key for a method and request. The same method and a
// structurally equal request always derive an identical key, including across
// distinct Go types that marshal to the same JSON document.
func DeriveKey(method string, req any) Key {
	if keyutil.IsAbsent(req) {
		return Key{Method: method}
	}
	return Key{Method: method, Request: req}
}

// HasRequest reports whether the key carries a request component.
func (k Key) HasRequest() bool {
	return !keyutil.IsAbsent(k.Request)
}

// String returns the canonical encoding of the key: a JSON array holding the
// method identifier and, when present, the canonical form of the request.
// The result is stable across processes and is what stores should use as
// their map key.
func (k Key) String() string {
	m, err := json.Marshal(k.Method)
	if err != nil {
		m = []byte(`""`)
	}
	if !k.HasRequest() {
		return "[" + string(m) + "]"
	}
	return "[" + string(m) + "," + keyutil.Canonical(k.Request) + "]"
}
