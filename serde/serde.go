// Package serde defines the record conversion contract: turning the raw bytes
// of a Kinesis record into a typed value. Implementations must be
// deterministic and side-effect free; the dispatch layer relies on that when
// it retries a batch.
package serde

// Deserialiser converts a raw record payload into a value of type T.
// The stream name is provided for implementations that key decoding off the
// source stream (schema registries, per-stream envelopes).
type Deserialiser[T any] interface {
	Deserialise(stream string, data []byte) (T, error)
}

// DeserialiserFunc adapts a plain function to the Deserialiser interface.
type DeserialiserFunc[T any] func(stream string, data []byte) (T, error)

func (f DeserialiserFunc[T]) Deserialise(stream string, data []byte) (T, error) {
	return f(stream, data)
}
