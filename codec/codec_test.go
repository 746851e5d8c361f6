package codec

import (
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type user struct {
	ID    string    `json:"id" cbor:"id" msgpack:"id"`
	Name  string    `json:"name" cbor:"name" msgpack:"name"`
	Tags  []string  `json:"tags" cbor:"tags" msgpack:"tags"`
	Since time.Time `json:"since" cbor:"since" msgpack:"since"`
}

func sample() user {
	return user{ID: "1", Name: "Ada", Tags: []string{"a", "b"}, Since: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func equalUser(a, b user) bool {
	if a.ID != b.ID || a.Name != b.Name || !a.Since.Equal(b.Since) || len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return true
}

func TestStructRoundTrip(t *testing.T) {
	serializers := map[string]Serializer{
		"json":     JSON{},
		"cbor":     MustCBOR(false),
		"cbor-det": MustCBOR(true),
		"msgpack":  Msgpack{},
		"limit":    Limit{Inner: JSON{}, MaxDecode: 1 << 10},
	}
	for name, s := range serializers {
		b, err := s.Marshal(sample())
		if err != nil {
			t.Fatalf("%s: Marshal: %v", name, err)
		}
		var got user
		if err := s.Unmarshal(b, &got); err != nil {
			t.Fatalf("%s: Unmarshal: %v", name, err)
		}
		if !equalUser(got, sample()) {
			t.Fatalf("%s: round trip mismatch: %+v", name, got)
		}
	}
}

func TestJSONIsUTF8Text(t *testing.T) {
	b, err := JSON{}.Marshal(map[string]string{"name": "Zoë"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"name":"Zoë"}` {
		t.Fatalf("unexpected encoding %q", b)
	}
}

func TestJSONUnmarshalShapeMismatch(t *testing.T) {
	var n int
	if err := (JSON{}).Unmarshal([]byte(`{"id":"1"}`), &n); err == nil {
		t.Fatalf("expected error decoding object into int")
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	l := Limit{Inner: JSON{}, MaxDecode: 4}
	var s string
	err := l.Unmarshal([]byte(`"too long"`), &s)
	if err == nil || !strings.Contains(err.Error(), "payload too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestRaw(t *testing.T) {
	b, err := Raw{}.Marshal("hello")
	if err != nil || string(b) != "hello" {
		t.Fatalf("Marshal string: %q %v", b, err)
	}
	var s string
	if err := (Raw{}).Unmarshal([]byte("world"), &s); err != nil || s != "world" {
		t.Fatalf("Unmarshal string: %q %v", s, err)
	}
	var bs []byte
	if err := (Raw{}).Unmarshal([]byte{1, 2}, &bs); err != nil || len(bs) != 2 {
		t.Fatalf("Unmarshal bytes: %v %v", bs, err)
	}
	if _, err := (Raw{}).Marshal(42); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("want ErrUnsupportedType, got %v", err)
	}
}

func TestProtobuf(t *testing.T) {
	in := wrapperspb.String("ada")
	b, err := Protobuf{}.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := &wrapperspb.StringValue{}
	if err := (Protobuf{}).Unmarshal(b, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !proto.Equal(in, out) {
		t.Fatalf("round trip mismatch: %v vs %v", in, out)
	}
	if _, err := (Protobuf{}).Marshal(sample()); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("want ErrUnsupportedType, got %v", err)
	}
}
