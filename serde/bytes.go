package serde

var _ Deserialiser[[]byte] = bytesDeserialiser{}

type bytesDeserialiser struct{}

func Bytes() Deserialiser[[]byte] {
	return bytesDeserialiser{}
}

func (s bytesDeserialiser) Deserialise(stream string, data []byte) ([]byte, error) {
	return data, nil
}
