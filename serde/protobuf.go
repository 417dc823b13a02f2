package serde

import (
	"reflect"

	"google.golang.org/protobuf/proto"
)

type protobufDeserialiser[T proto.Message] struct{}

// Protobuf returns a Deserialiser for generated protobuf message types.
func Protobuf[T proto.Message]() Deserialiser[T] {
	return protobufDeserialiser[T]{}
}

func (s protobufDeserialiser[T]) Deserialise(_ string, data []byte) (T, error) {
	var zero T
	// T is a pointer to a generated message type; allocate a fresh value so
	// Unmarshal has something to fill in.
	msg := reflect.New(reflect.TypeOf(zero).Elem()).Interface().(T)
	err := proto.Unmarshal(data, msg)
	return msg, err
}
