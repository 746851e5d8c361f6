package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf handles proto.Message values only. dst must be a message pointer
// (e.g. &mypb.User{}), not a pointer to one.
type Protobuf struct{}

var _ Serializer = Protobuf{}

func (Protobuf) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a proto.Message", ErrUnsupportedType, v)
	}
	return proto.Marshal(m)
}

func (Protobuf) Unmarshal(b []byte, dst any) error {
	m, ok := dst.(proto.Message)
	if !ok {
		return fmt.Errorf("%w: %T is not a proto.Message", ErrUnsupportedType, dst)
	}
	return proto.Unmarshal(b, m)
}
