package codec

import "encoding/json"

// JSON stores values as UTF-8 JSON text. It is the default Serializer.
type JSON struct{}

var _ Serializer = JSON{}

func (JSON) Marshal(v any) ([]byte, error)     { return json.Marshal(v) }
func (JSON) Unmarshal(b []byte, dst any) error { return json.Unmarshal(b, dst) }
