package document

import (
	"encoding/json"

	"github.com/solidb/solidb/pkg/value"
)

// marshalValue and unmarshalValue are the on-disk document encoding
// (spec §4.4 Encoding: "documents stored as length-prefixed JSON
// blobs"). value.Value already implements json.Marshaler/Unmarshaler,
// so the document row format is plain JSON bytes; bbolt itself
// provides the length-prefixing at the page level.
func marshalValue(v value.Value) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalValue(raw []byte) (value.Value, error) {
	var v value.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return value.Null(), err
	}
	return v, nil
}
