//go:build unit

package serde_test

import (
	"testing"

	"github.com/mikegirkin/gfc-aws-kinesis/serde"
	"github.com/stretchr/testify/require"
)

func TestJSONDeserialiser(t *testing.T) {
	t.Parallel()
	type Person struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	tests := []struct {
		name    string
		input   string
		expect  Person
		wantErr bool
	}{
		{
			name:  "valid json",
			input: `{"name":"Bob","age":25}`,
			expect: Person{
				Name: "Bob",
				Age:  25,
			},
			wantErr: false,
		},
		{
			name:    "invalid json",
			input:   `{"name":"Charlie","age":"not-a-number"}`,
			expect:  Person{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				t.Parallel()
				d := serde.JSON[Person]()
				output, err := d.Deserialise("test-stream", []byte(tt.input))
				if tt.wantErr {
					require.Error(t, err)
					return
				}

				require.NoError(t, err)
				require.Equal(t, tt.expect, output)
			},
		)
	}
}
