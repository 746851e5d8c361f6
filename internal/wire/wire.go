package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindEntry byte = 1

	hdrLen = 4 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("rediscache: corrupt entry")
	magic4     = [...]byte{'R', 'C', 'E', 'N'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | kind(1=entry) | expiresAt(i64 be, unix nanos, 0 = never) | vlen(u32 be) | payload(vlen)
func EncodeEntry(expiresAt int64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(expiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeEntry is strict: short input, bad header or trailing bytes are ErrCorrupt.
// The returned payload aliases b.
func DecodeEntry(b []byte) (expiresAt int64, payload []byte, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return 0, nil, ErrCorrupt
	}

	off := 6

	expiresAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return 0, nil, ErrCorrupt
	}

	return expiresAt, b[off:], nil
}

// Expired reports whether an entry with the given deadline is dead at now (unix nanos).
func Expired(expiresAt, now int64) bool {
	return expiresAt != 0 && now >= expiresAt
}
