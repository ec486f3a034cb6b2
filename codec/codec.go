// Package codec provides the value encodings used when cache snapshots are
// persisted to a byte store. A Codec is pure data conversion; framing and
// versioning of the stored blob belong to the persist package.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
