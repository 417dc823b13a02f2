package kinesis

import (
	"errors"
	"sync"
	"time"

	kcl "github.com/ODudek/go-kcl/clientlibrary/interfaces"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/mikegirkin/gfc-aws-kinesis/logger"
	"github.com/mikegirkin/gfc-aws-kinesis/serde"
)

// errOfferTimeout fails the delivered batch when the downstream consumer did
// not free buffer capacity within the offer timeout. The retry layer then
// redelivers the batch, so no record is lost to a slow consumer.
var errOfferTimeout = errors.New("record buffer full, downstream consumer too slow")

// OverflowPolicy decides what happens when a record is offered to a full
// buffer.
type OverflowPolicy int

const (
	// OverflowBlock blocks the shard's delivery goroutine until capacity
	// frees up, bounded by the offer timeout. This is true backpressure:
	// downstream slowness pauses record delivery.
	OverflowBlock OverflowPolicy = iota

	// OverflowDropOldest evicts the oldest buffered record to make room.
	OverflowDropOldest

	// OverflowDropNewest drops the incoming record when the buffer is full.
	OverflowDropNewest
)

type streamConfig struct {
	bufferSize   int
	policy       OverflowPolicy
	offerTimeout time.Duration
}

type StreamOption func(*streamConfig)

func defaultStreamConfig() streamConfig {
	return streamConfig{
		bufferSize:   100,
		policy:       OverflowBlock,
		offerTimeout: 30 * time.Second,
	}
}

// WithBufferSize sets the bounded channel capacity.
func WithBufferSize(n int) StreamOption {
	return func(c *streamConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

func WithOverflowPolicy(p OverflowPolicy) StreamOption {
	return func(c *streamConfig) {
		c.policy = p
	}
}

// WithOfferTimeout bounds how long a full buffer blocks the delivery
// goroutine under OverflowBlock before the batch is failed and retried.
func WithOfferTimeout(d time.Duration) StreamOption {
	return func(c *streamConfig) {
		if d > 0 {
			c.offerTimeout = d
		}
	}
}

// CheckpointableRecord pairs a converted record with the collaborator's
// checkpoint handle for its shard, for consumers that manage checkpointing
// themselves.
type CheckpointableRecord[T any] struct {
	ShardID        string
	SequenceNumber string
	PartitionKey   string
	Value          T
	Checkpointer   kcl.IRecordProcessorCheckpointer
}

// Checkpoint persists progress for the shard up to this record.
func (r CheckpointableRecord[T]) Checkpoint() error {
	return r.Checkpointer.Checkpoint(aws.String(r.SequenceNumber))
}

// Stream exposes consumed records as a lazily started, bounded, backpressured
// channel. The first Records call starts exactly one worker run; Close stops
// it through the manager's shutdown.
type Stream[E any] struct {
	ch     chan E
	config streamConfig
	logger logger.Logger

	start     func()
	shutdown  func(timeout time.Duration) error
	startOnce sync.Once
	closeOnce sync.Once
}

func newStream[E any](config streamConfig, l logger.Logger) *Stream[E] {
	return &Stream[E]{
		ch:     make(chan E, config.bufferSize),
		config: config,
		logger: l.With("component", "stream"),
	}
}

// Records materializes the stream. The worker is started on the first call;
// later calls return the same channel. The channel is closed by a successful
// Close.
func (s *Stream[E]) Records() <-chan E {
	s.startOnce.Do(s.start)
	return s.ch
}

// Close shuts the underlying worker down and, once every worker acknowledged,
// closes the record channel. On ErrShutdownTimeout the channel stays open
// because delivery goroutines may still be offering into it.
func (s *Stream[E]) Close(timeout time.Duration) error {
	if err := s.shutdown(timeout); err != nil {
		return err
	}
	s.closeOnce.Do(func() { close(s.ch) })
	return nil
}

func (s *Stream[E]) offer(v E) error {
	switch s.config.policy {
	case OverflowDropNewest:
		select {
		case s.ch <- v:
		default:
			s.logger.Debug("buffer full, dropping newest record")
		}
		return nil

	case OverflowDropOldest:
		for {
			select {
			case s.ch <- v:
				return nil
			default:
			}
			// A concurrent receive may have freed a slot since the first
			// select; prefer delivering over evicting when it has.
			select {
			case s.ch <- v:
				return nil
			case <-s.ch:
				s.logger.Debug("buffer full, dropped oldest record")
			}
		}

	default: // OverflowBlock
		select {
		case s.ch <- v:
			return nil
		case <-time.After(s.config.offerTimeout):
			return errOfferTimeout
		}
	}
}

// NewRecordStream returns the auto-checkpoint variant: converted records flow
// downstream and the core checkpoints on the configured interval after
// batches are accepted.
func NewRecordStream[T any](cfg Config, d serde.Deserialiser[T], opts ...StreamOption) *Stream[T] {
	return newRecordStream(NewManager(cfg, d), opts...)
}

func newRecordStream[T any](mgr *Manager[T], opts ...StreamOption) *Stream[T] {
	sc := defaultStreamConfig()
	for _, opt := range opts {
		opt(&sc)
	}

	s := newStream[T](sc, mgr.config.Logger)
	s.shutdown = mgr.Shutdown
	s.start = func() {
		mgr.runBatchInternal(
			func(shardID string, records []converted[T], _ kcl.IRecordProcessorCheckpointer) error {
				for _, r := range records {
					if err := s.offer(r.value); err != nil {
						return err
					}
				}
				return nil
			},
		)
	}
	return s
}

// NewCheckpointableStream returns the manual-checkpoint variant: each record
// is delivered together with its shard's checkpoint handle and the core never
// checkpoints internally. Callers own checkpoint progress entirely.
func NewCheckpointableStream[T any](cfg Config, d serde.Deserialiser[T], opts ...StreamOption) *Stream[CheckpointableRecord[T]] {
	// Disable the interval so the only checkpoint calls are the consumer's.
	cfg.CheckpointInterval = 0
	return newCheckpointableStream(NewManager(cfg, d), opts...)
}

func newCheckpointableStream[T any](mgr *Manager[T], opts ...StreamOption) *Stream[CheckpointableRecord[T]] {
	sc := defaultStreamConfig()
	for _, opt := range opts {
		opt(&sc)
	}

	s := newStream[CheckpointableRecord[T]](sc, mgr.config.Logger)
	s.shutdown = mgr.Shutdown
	s.start = func() {
		mgr.runBatchInternal(
			func(shardID string, records []converted[T], checkpointer kcl.IRecordProcessorCheckpointer) error {
				for _, r := range records {
					item := CheckpointableRecord[T]{
						ShardID:        shardID,
						SequenceNumber: aws.ToString(r.raw.SequenceNumber),
						PartitionKey:   aws.ToString(r.raw.PartitionKey),
						Value:          r.value,
						Checkpointer:   checkpointer,
					}
					if err := s.offer(item); err != nil {
						return err
					}
				}
				return nil
			},
		)
	}
	return s
}
