package codec

import "encoding/json"

// JSON serializes values with encoding/json. It is the default snapshot
// codec: human-readable and tolerant of value-type drift across versions.
// The zero value is ready to use.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
