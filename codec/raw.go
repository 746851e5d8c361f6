package codec

import "fmt"

// Raw stores []byte and string values as-is. Useful when the payload is already
// encoded. Unmarshal accepts *[]byte and *string.
type Raw struct{}

var _ Serializer = Raw{}

func (Raw) Marshal(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("%w: raw cannot encode %T", ErrUnsupportedType, v)
	}
}

func (Raw) Unmarshal(b []byte, dst any) error {
	switch x := dst.(type) {
	case *[]byte:
		*x = append((*x)[:0], b...)
		return nil
	case *string:
		*x = string(b)
		return nil
	default:
		return fmt.Errorf("%w: raw cannot decode into %T", ErrUnsupportedType, dst)
	}
}
