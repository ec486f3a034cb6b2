// Package queryfx adapts generated RPC-style clients to a cache with
// query/mutation semantics: deterministic keys derived from method and
// request, optimistic cache patches applied before a mutation's transport
// call, and commit or rollback of those patches once the call settles.
//
// Components:
//   - Method[Req, Resp]: a method identifier bound to a transport Caller
//     (see transport for the HTTP flavor).
//   - Store: the cache contract (get/set/remove/cancel/invalidate).
//     querystore is the reference implementation.
//   - Effect[Req, Resp]: one mutation side effect against one target
//     method, built with NewEffect and composed with Chain.
//   - Query / Mutation: executors tying a Method, a Store, and effects
//     together.
//
// Keys:
//
//	["users.list"]          - method-only key (also an invalidation selector)
//	["users.get",{"id":1}]  - method + canonical request
//
// Mutation lifecycle:
//
//	rb  := effects.Prepare(...)  // cancel in-flight, snapshot, patch
//	resp, err := method.Call(...)
//	err == nil ? effects.Commit(...)   // update, then invalidate
//	           : effects.Rollback(rb)  // restore snapshots
package queryfx
