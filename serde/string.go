package serde

type stringDeserialiser struct{}

func String() Deserialiser[string] {
	return stringDeserialiser{}
}

func (s stringDeserialiser) Deserialise(stream string, data []byte) (string, error) {
	return string(data), nil
}
