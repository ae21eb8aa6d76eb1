package server

import (
	"encoding/json"
)

// jsonCodec lets connect carry plain Go structs as JSON. It replaces the
// built-in "json" codec, which only accepts generated protobuf messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
