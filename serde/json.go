package serde

import "encoding/json"

type jsonDeserialiser[T any] struct{}

// JSON returns a Deserialiser that decodes record payloads as JSON.
func JSON[T any]() Deserialiser[T] {
	return jsonDeserialiser[T]{}
}

func (s jsonDeserialiser[T]) Deserialise(_ string, data []byte) (T, error) {
	var result T
	err := json.Unmarshal(data, &result)
	return result, err
}
