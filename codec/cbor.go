package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR serializes values with fxamacker/cbor. Snapshots carrying many
// entries shrink considerably versus JSON, at the cost of the stored blob
// no longer being greppable. The zero value is not usable; construct with
// NewCBOR or NewDeterministicCBOR.
type CBOR[V any] struct {
	em cbor.EncMode
	dm cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR returns a codec with the library's preferred encoding options.
// Timestamps encode as RFC3339Nano strings so SavedAt/UpdatedAt fields
// survive round trips at full precision; decode accepts them with or
// without the standard time tag.
func NewCBOR[V any]() (CBOR[V], error) {
	return newCBOR[V](cbor.PreferredUnsortedEncOptions())
}

// NewDeterministicCBOR returns a codec using RFC 8949 core deterministic
// encoding: equal snapshots encode to equal bytes, so replicas can compare
// or content-address stored blobs without decoding them.
func NewDeterministicCBOR[V any]() (CBOR[V], error) {
	return newCBOR[V](cbor.CoreDetEncOptions())
}

func newCBOR[V any](eo cbor.EncOptions) (CBOR[V], error) {
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := (cbor.DecOptions{TimeTag: cbor.DecTagOptional}).DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{em: em, dm: dm}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.em.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dm.Unmarshal(b, &v)
	return v, err
}
