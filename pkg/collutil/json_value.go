// Package collutil supplies small cosmossdk.io/collections codecs for
// packages in this module that store plain Go structs rather than
// gogoproto messages.
package collutil

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/collections/codec"
)

// jsonValue implements codec.ValueCodec[T] by marshaling T as JSON. It is
// used for every collections.Map/Item in this module whose value type is a
// hand-written struct (SettlementRecord, Escrow, ...) instead of a
// proto-generated message, so keepers can still persist them through
// cosmossdk.io/collections without a protoc step.
type jsonValue[T any] struct {
	name string
}

// NewJSONValue returns a collections.ValueCodec that (de)serializes T as JSON.
func NewJSONValue[T any](name string) codec.ValueCodec[T] {
	return jsonValue[T]{name: name}
}

func (c jsonValue[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (c jsonValue[T]) Decode(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

func (c jsonValue[T]) EncodeJSON(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (c jsonValue[T]) DecodeJSON(b []byte) (T, error) {
	return c.Decode(b)
}

func (c jsonValue[T]) Stringify(value T) string {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("<%s: %s>", c.name, err)
	}
	return string(b)
}

func (c jsonValue[T]) ValueType() string {
	return c.name
}
