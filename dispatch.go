package kinesis

import (
	"encoding/base64"

	kcl "github.com/ODudek/go-kcl/clientlibrary/interfaces"

	"github.com/mikegirkin/gfc-aws-kinesis/logger"
	"github.com/mikegirkin/gfc-aws-kinesis/serde"
)

// BatchHandler processes every successfully converted record of one delivered
// batch. Records arrive in delivery order. Returning an error fails the whole
// batch and triggers retry; handlers must therefore be idempotent under
// at-least-once redelivery. The checkpointer is the collaborator's handle for
// this shard, passed through unchanged.
type BatchHandler[T any] func(shardID string, records []T, checkpointer kcl.IRecordProcessorCheckpointer) error

// RecordHandler processes one converted record. An error aborts the rest of
// the batch and triggers retry for the whole batch, including records already
// handled in this attempt.
type RecordHandler[T any] func(shardID string, record T) error

// batchRun is one attempt at processing a delivered batch. The retry layer in
// the record processor invokes it repeatedly with an increasing attempt
// counter until it succeeds or retries are exhausted.
type batchRun func(shardID string, in *kcl.ProcessRecordsInput, attempt uint) error

// internalBatchHandler is the in-package handler shape that still sees the
// raw records behind the converted values. The backpressure bridge needs the
// sequence numbers; the public adapters strip them.
type internalBatchHandler[T any] func(shardID string, records []converted[T], checkpointer kcl.IRecordProcessorCheckpointer) error

// newSyncRun builds the synchronous dispatch: convert every record, log and
// drop the unconvertible ones, hand the ordered successes to the handler
// exactly once per attempt. Conversion failures are logged on the first
// attempt only, so a retried batch does not repeat them.
func newSyncRun[T any](d serde.Deserialiser[T], stream string, handler internalBatchHandler[T], log logger.Logger) batchRun {
	return func(shardID string, in *kcl.ProcessRecordsInput, attempt uint) error {
		values, failures := convertBatch(d, stream, in.Records)

		if attempt == 0 {
			for _, f := range failures {
				logConversionFailure(log, shardID, f)
			}
		}

		return handler(shardID, values, in.Checkpointer)
	}
}

func logConversionFailure(log logger.Logger, shardID string, f *ConversionError) {
	log.Error(
		"dropping unconvertible record",
		"shard", shardID,
		"sequence", f.SequenceNumber,
		"partition_key", f.PartitionKey,
		"data", base64.StdEncoding.EncodeToString(f.Data),
		"error", f.Cause,
	)
}

// toInternal adapts the public batch handler to the internal shape.
func toInternal[T any](handler BatchHandler[T]) internalBatchHandler[T] {
	return func(shardID string, records []converted[T], checkpointer kcl.IRecordProcessorCheckpointer) error {
		values := make([]T, len(records))
		for i, r := range records {
			values[i] = r.value
		}
		return handler(shardID, values, checkpointer)
	}
}

// eachRecord re-expresses a per-record handler as a batch handler iterating
// the successes in order and stopping at the first error.
func eachRecord[T any](handler RecordHandler[T]) internalBatchHandler[T] {
	return func(shardID string, records []converted[T], _ kcl.IRecordProcessorCheckpointer) error {
		for _, r := range records {
			if err := handler(shardID, r.value); err != nil {
				return err
			}
		}
		return nil
	}
}
