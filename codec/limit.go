package codec

import "fmt"

// Limit wraps another Serializer to enforce a maximum payload size at decode time.
// Marshal is forwarded to Inner unchanged. If MaxDecode <= 0, limiting is disabled.
//
// Typical use: protect against oversized inputs coming from a shared store.
type Limit struct {
	Inner     Serializer
	MaxDecode int // bytes
}

var _ Serializer = Limit{}

func (c Limit) Marshal(v any) ([]byte, error) { return c.Inner.Marshal(v) }

func (c Limit) Unmarshal(b []byte, dst any) error {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		return fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Unmarshal(b, dst)
}
