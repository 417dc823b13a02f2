package kinesis

import (
	"context"
	"sync"
	"time"

	kcl "github.com/ODudek/go-kcl/clientlibrary/interfaces"
	"github.com/aws/aws-sdk-go-v2/aws"
	ktypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"github.com/mikegirkin/gfc-aws-kinesis/logger"
	"github.com/mikegirkin/gfc-aws-kinesis/serde"
)

// AsyncRecordHandler processes one converted record on a fan-out goroutine.
// The context is cancelled when the batch deadline expires; handlers should
// honour it so a stuck batch does not leak goroutines.
type AsyncRecordHandler[T any] func(ctx context.Context, shardID string, record T) error

type outcomeKind int

const (
	outcomePending outcomeKind = iota
	outcomeSuccess
	outcomeConversionFailure
	outcomeProcessingFailure
)

// recordOutcome is the tagged per-record result of one fan-out attempt.
// Explicit variants instead of error taxonomies keep the skip-vs-retry
// classification intact across goroutine boundaries.
type recordOutcome struct {
	kind       outcomeKind
	conversion *ConversionError
	err        error
}

// newAsyncRun builds the asynchronous dispatch: every raw record of the batch
// is converted and handled concurrently, bounded by concurrency, and the
// whole fan-out must finish within timeout. Outcomes are then inspected in
// delivery order: conversion failures are logged and dropped, and the first
// processing failure fails the batch, regardless of which handler finished
// first.
func newAsyncRun[T any](
	d serde.Deserialiser[T],
	stream string,
	handler AsyncRecordHandler[T],
	timeout time.Duration,
	concurrency int,
	log logger.Logger,
) batchRun {
	if concurrency < 1 {
		concurrency = 1
	}

	return func(shardID string, in *kcl.ProcessRecordsInput, attempt uint) error {
		outcomes := make([]recordOutcome, len(in.Records))

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		for i, rec := range in.Records {
			wg.Add(1)
			go func(i int, rec ktypes.Record) {
				defer wg.Done()

				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					return
				}

				value, convErr := deserialiseRecord(d, stream, rec)
				if convErr != nil {
					outcomes[i] = recordOutcome{kind: outcomeConversionFailure, conversion: convErr}
					return
				}

				if err := handler(ctx, shardID, value); err != nil {
					outcomes[i] = recordOutcome{kind: outcomeProcessingFailure, err: err}
					return
				}
				outcomes[i] = recordOutcome{kind: outcomeSuccess}
			}(i, rec)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			return &BatchTimeoutError{ShardID: shardID, Timeout: timeout}
		}

		for i, out := range outcomes {
			rec := in.Records[i]
			switch out.kind {
			case outcomePending:
				// The handler never ran: its goroutine saw the expired
				// deadline before the completion select did.
				return &BatchTimeoutError{ShardID: shardID, Timeout: timeout}
			case outcomeSuccess:
				log.Debug("record processed", "shard", shardID, "sequence", aws.ToString(rec.SequenceNumber))
			case outcomeConversionFailure:
				// Conversion is deterministic; a retried batch must not
				// repeat the failure log.
				if attempt == 0 {
					logConversionFailure(log, shardID, out.conversion)
				}
			case outcomeProcessingFailure:
				return &ProcessingError{
					ShardID:        shardID,
					SequenceNumber: aws.ToString(rec.SequenceNumber),
					PartitionKey:   aws.ToString(rec.PartitionKey),
					Cause:          out.err,
				}
			}
		}

		return nil
	}
}
