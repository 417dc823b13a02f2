package kinesis

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ktypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"github.com/mikegirkin/gfc-aws-kinesis/serde"
)

// converted pairs a decoded value with the raw record it came from, so the
// dispatch and bridge layers can checkpoint at the record's sequence number.
type converted[T any] struct {
	value T
	raw   ktypes.Record
}

// deserialiseRecord applies the caller-supplied deserialiser to one record.
// It never panics: converter panics and errors alike are downgraded to a
// *ConversionError carrying a private copy of the payload for diagnostics.
func deserialiseRecord[T any](d serde.Deserialiser[T], stream string, rec ktypes.Record) (value T, convErr *ConversionError) {
	defer func() {
		if r := recover(); r != nil {
			convErr = newConversionError(rec, fmt.Errorf("deserialiser panic: %v", r))
		}
	}()

	value, err := d.Deserialise(stream, rec.Data)
	if err != nil {
		return value, newConversionError(rec, err)
	}
	return value, nil
}

func newConversionError(rec ktypes.Record, cause error) *ConversionError {
	snapshot := make([]byte, len(rec.Data))
	copy(snapshot, rec.Data)
	return &ConversionError{
		SequenceNumber: aws.ToString(rec.SequenceNumber),
		PartitionKey:   aws.ToString(rec.PartitionKey),
		Data:           snapshot,
		Cause:          cause,
	}
}

// convertBatch converts every record of a batch independently, preserving
// delivery order among the successes. Failures never abort the batch.
func convertBatch[T any](d serde.Deserialiser[T], stream string, records []ktypes.Record) ([]converted[T], []*ConversionError) {
	values := make([]converted[T], 0, len(records))
	var failures []*ConversionError

	for _, rec := range records {
		v, convErr := deserialiseRecord(d, stream, rec)
		if convErr != nil {
			failures = append(failures, convErr)
			continue
		}
		values = append(values, converted[T]{value: v, raw: rec})
	}

	return values, failures
}
