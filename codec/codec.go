// Package codec converts cache values to and from the bytes stored under a key.
//
// Unmarshal decodes into dst, which must be a non-nil pointer. Every Serializer here
// is an inverse pair: Unmarshal(Marshal(v)) reproduces v for all values the format
// can represent.
package codec

import "errors"

// Serializer encodes values for storage.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, dst any) error
}

var ErrUnsupportedType = errors.New("codec: unsupported value type")
