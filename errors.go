package kinesis

import (
	"errors"
	"fmt"
	"time"
)

// ErrShutdownTimeout is returned by Manager.Shutdown when one or more workers
// fail to acknowledge the stop request within the given timeout. The stop
// request itself is not retracted; workers keep shutting down in the
// background.
var ErrShutdownTimeout = errors.New("timeout waiting for workers to shut down")

// ConversionError reports a record whose payload could not be converted into
// the target type. Conversion failures are terminal for the record: the same
// bytes would fail again on redelivery, so the record is logged and dropped.
type ConversionError struct {
	SequenceNumber string
	PartitionKey   string
	// Data is a private copy of the record payload taken at failure time,
	// safe to log after the collaborator reuses the original buffer.
	Data  []byte
	Cause error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert record %s: %v", e.SequenceNumber, e.Cause)
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}

func AsConversionError(err error) (*ConversionError, bool) {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ProcessingError reports a record whose handler failed. Processing failures
// may be transient and escalate to batch granularity: the whole delivered
// batch is retried.
type ProcessingError struct {
	ShardID        string
	SequenceNumber string
	PartitionKey   string
	Cause          error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("shard %s: failed to process record %s: %v", e.ShardID, e.SequenceNumber, e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

func AsProcessingError(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// BatchTimeoutError reports that asynchronous fan-out processing of a batch
// did not complete within its deadline. Treated like any other batch failure:
// the batch is retried.
type BatchTimeoutError struct {
	ShardID string
	Timeout time.Duration
}

func (e *BatchTimeoutError) Error() string {
	return fmt.Sprintf("shard %s: batch processing did not complete within %s", e.ShardID, e.Timeout)
}

func AsBatchTimeoutError(err error) (*BatchTimeoutError, bool) {
	var te *BatchTimeoutError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
