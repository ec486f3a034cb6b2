package codec

import "fmt"

// Limit wraps another codec to enforce maximum payload sizes in both
// directions. A limit <= 0 disables that side's check.
//
// Snapshots grow with the cache they mirror. MaxEncode keeps a runaway
// cache from writing unbounded blobs into a shared store; MaxDecode
// protects against oversized or foreign payloads read back from one.
type Limit[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec[V]

	// MaxEncode caps the encoded output size. An oversized encode
	// returns an error and nothing should be stored.
	MaxEncode int

	// MaxDecode caps the incoming payload length for Decode. An
	// oversized payload is rejected without invoking Inner.
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("encoded payload too large: %d > %d", len(b), c.MaxEncode)
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
