// Package keyutil renders request values into the canonical JSON form used
// by cache keys. Two values that marshal to the same JSON document produce
// the same canonical string regardless of field order or Go type, so keys
// survive a dehydrate/hydrate round trip through generic maps.
package keyutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Canonical returns the canonical JSON encoding of v. Object members are
// emitted in sorted key order and numbers keep their source precision.
// Values that cannot be marshaled degrade to a quoted %#v rendering so the
// result is always usable as a map key.
func Canonical(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		q, _ := json.Marshal(fmt.Sprintf("%#v", v))
		return string(q)
	}
	norm, err := DecodeAny(raw)
	if err != nil {
		return string(raw)
	}
	out, err := json.Marshal(norm)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// DecodeAny decodes a JSON document into generic Go values, keeping numbers
// as json.Number so large integers re-encode without precision loss.
func DecodeAny(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// IsAbsent reports whether v carries no request payload: a nil interface or
// a typed nil pointer, map, or slice.
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
