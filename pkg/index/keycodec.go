package index

import (
	"encoding/binary"
	"math"

	"github.com/solidb/solidb/pkg/value"
)

// Order-preserving type tags so that Null < Bool < Number < String
// regardless of byte content, matching value.Compare's typeRank.
const (
	tagNull byte = iota
	tagFalse
	tagTrue
	tagNumber
	tagString
)

// EncodeSortable turns a value.Value into a byte string whose
// lexicographic order matches value.Compare, so persistent index
// entries can be range-scanned directly off the underlying kv.Engine
// (spec §4.4: equality and range lookups backed by ordered keys).
func EncodeSortable(v value.Value) []byte {
	switch v.Kind() {
	case value.KindNull:
		return []byte{tagNull}
	case value.KindBool:
		if v.AsBool() {
			return []byte{tagTrue}
		}
		return []byte{tagFalse}
	case value.KindInt, value.KindFloat:
		return encodeFloatSortable(v.Number())
	case value.KindString:
		return append([]byte{tagString}, escapeString(v.AsString())...)
	default:
		// Arrays/objects are not indexable field values; fall back to a
		// stable tag so callers at least get deterministic ordering.
		return []byte{tagString + 1}
	}
}

// encodeFloatSortable produces bytes that sort in the same order as
// the underlying float64, using the standard IEEE-754 sign-flip trick.
func encodeFloatSortable(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	out := make([]byte, 9)
	out[0] = tagNumber
	binary.BigEndian.PutUint64(out[1:], bits)
	return out
}

// escapeString writes each 0x00 byte as 0x00 0x01 and terminates with
// 0x00 0x00 so that concatenated composite keys remain self-delimiting.
func escapeString(s string) []byte {
	out := make([]byte, 0, len(s)+1)
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			out = append(out, 0x00, 0x01)
		} else {
			out = append(out, s[i])
		}
	}
	out = append(out, 0x00, 0x00)
	return out
}

// CompositeKey encodes an ordered tuple of field values into a single
// sortable byte string, used for compound-field persistent indexes.
func CompositeKey(values []value.Value) []byte {
	var out []byte
	for _, v := range values {
		out = append(out, EncodeSortable(v)...)
	}
	return out
}
