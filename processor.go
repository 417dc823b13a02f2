package kinesis

import (
	"time"

	kcl "github.com/ODudek/go-kcl/clientlibrary/interfaces"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/hugolhafner/dskit/backoff"

	"github.com/mikegirkin/gfc-aws-kinesis/logger"
)

var _ kcl.IRecordProcessorFactory = (*recordProcessorFactory)(nil)
var _ kcl.IRecordProcessor = (*recordProcessor)(nil)

// processorConfig carries everything a record processor needs. One value is
// shared by all processors a factory creates; it is read-only after build.
type processorConfig struct {
	run                batchRun
	maxRetries         int
	retryBackoff       backoff.Backoff
	exhaustion         ExhaustionPolicy
	checkpointInterval time.Duration
	initHook           InitHook
	shutdownHook       ShutdownHook
	// fatal escalates a retry-exhausted batch under ExhaustionStopWorker.
	// Wired by the manager to stop the owning worker.
	fatal  func(error)
	logger logger.Logger
}

type recordProcessorFactory struct {
	config processorConfig
}

func (f *recordProcessorFactory) CreateProcessor() kcl.IRecordProcessor {
	return &recordProcessor{config: f.config}
}

// recordProcessor drives one shard. The collaborator guarantees the lifecycle
// Initialize -> ProcessRecords* -> Shutdown on a single goroutine per shard,
// so no locking is needed here.
type recordProcessor struct {
	config         processorConfig
	shardID        string
	lastCheckpoint time.Time
}

func (p *recordProcessor) Initialize(in *kcl.InitializationInput) {
	p.shardID = in.ShardId
	p.lastCheckpoint = time.Now()

	checkpoint := ""
	if in.ExtendedSequenceNumber != nil {
		checkpoint = aws.ToString(in.ExtendedSequenceNumber.SequenceNumber)
	}
	p.config.logger.Info("shard assigned", "shard", p.shardID, "checkpoint", checkpoint)

	if p.config.initHook != nil {
		p.config.initHook(p.shardID)
	}
}

// ProcessRecords runs one delivered batch through the dispatch layer,
// retrying the batch with backoff on failure. Nothing escapes to the
// collaborator: exhausted batches are abandoned per the configured policy and
// unexpected panics are downgraded to a logged batch failure.
func (p *recordProcessor) ProcessRecords(in *kcl.ProcessRecordsInput) {
	defer func() {
		if r := recover(); r != nil {
			p.config.logger.Error("panic while processing batch", "shard", p.shardID, "panic", r)
		}
	}()

	if len(in.Records) == 0 {
		return
	}

	for attempt := uint(0); ; attempt++ {
		err := p.config.run(p.shardID, in, attempt)
		if err == nil {
			p.maybeCheckpoint(in)
			return
		}

		if int(attempt) >= p.config.maxRetries {
			p.abandon(err)
			return
		}

		p.config.logger.Warn(
			"batch attempt failed, retrying",
			"shard", p.shardID,
			"attempt", attempt,
			"error", err,
		)
		// dskit backoff intervals are 1-based.
		time.Sleep(p.config.retryBackoff.Next(attempt + 1))
	}
}

func (p *recordProcessor) Shutdown(in *kcl.ShutdownInput) {
	p.config.logger.Info(
		"shard released",
		"shard", p.shardID,
		"reason", aws.ToString(kcl.ShutdownReasonMessage(in.ShutdownReason)),
	)

	if p.config.shutdownHook != nil {
		p.config.shutdownHook(p.shardID, in.ShutdownReason)
	}

	// The shard is closed and fully delivered; a terminal checkpoint lets the
	// collaborator start on the child shards. In manual-checkpoint mode that
	// decision belongs to the downstream consumer.
	if in.ShutdownReason == kcl.TERMINATE && p.config.checkpointInterval > 0 {
		if err := in.Checkpointer.Checkpoint(nil); err != nil {
			p.config.logger.Error("terminal checkpoint failed", "shard", p.shardID, "error", err)
		}
	}
}

// abandon gives up on a batch after retries are exhausted. The checkpoint is
// not advanced, so the batch will be redelivered after the next failover.
func (p *recordProcessor) abandon(err error) {
	p.config.logger.Error(
		"abandoning batch after exhausted retries",
		"shard", p.shardID,
		"attempts", p.config.maxRetries+1,
		"policy", p.config.exhaustion.String(),
		"error", err,
	)

	if p.config.shutdownHook != nil {
		p.config.shutdownHook(p.shardID, kcl.ZOMBIE)
	}

	if p.config.exhaustion == ExhaustionStopWorker && p.config.fatal != nil {
		p.config.fatal(err)
	}
}

func (p *recordProcessor) maybeCheckpoint(in *kcl.ProcessRecordsInput) {
	if p.config.checkpointInterval <= 0 {
		return
	}
	if time.Since(p.lastCheckpoint) < p.config.checkpointInterval {
		return
	}

	last := in.Records[len(in.Records)-1].SequenceNumber
	if err := in.Checkpointer.Checkpoint(last); err != nil {
		p.config.logger.Error("checkpoint failed", "shard", p.shardID, "sequence", aws.ToString(last), "error", err)
		return
	}

	p.lastCheckpoint = time.Now()
	p.config.logger.Debug("checkpoint advanced", "shard", p.shardID, "sequence", aws.ToString(last))
}
