package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes values using vmihailenco/msgpack/v5.
// The zero value is ready to use.
//
// Be mindful of struct tag differences vs JSON; use `msgpack:"fieldName"` tags
// if you need explicit control.
type Msgpack struct{}

var _ Serializer = Msgpack{}

func (Msgpack) Marshal(v any) ([]byte, error)     { return msgpack.Marshal(v) }
func (Msgpack) Unmarshal(b []byte, dst any) error { return msgpack.Unmarshal(b, dst) }
