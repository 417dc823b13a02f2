package kinesis

import (
	"time"

	chk "github.com/ODudek/go-kcl/clientlibrary/checkpoint"
	kclconfig "github.com/ODudek/go-kcl/clientlibrary/config"
	kcl "github.com/ODudek/go-kcl/clientlibrary/interfaces"
	"github.com/ODudek/go-kcl/clientlibrary/metrics"
	kcllogger "github.com/ODudek/go-kcl/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/hugolhafner/dskit/backoff"

	"github.com/mikegirkin/gfc-aws-kinesis/logger"
)

// InitHook runs once when a shard is assigned to a worker, before any batch
// is delivered for it.
type InitHook func(shardID string)

// ShutdownHook runs when a shard is released. The reason distinguishes
// graceful release (REQUESTED, TERMINATE) from lease loss (ZOMBIE) and from
// retry exhaustion, where it is invoked with ZOMBIE before the batch is
// abandoned.
type ShutdownHook func(shardID string, reason kcl.ShutdownReason)

// ExhaustionPolicy decides what happens when a batch is still failing after
// MaxRetries attempts. The batch is abandoned either way; the policy decides
// the blast radius.
type ExhaustionPolicy int

const (
	// ExhaustionSkipBatch logs the failure and moves on without advancing the
	// checkpoint. The batch is redelivered after the next failover.
	ExhaustionSkipBatch ExhaustionPolicy = iota

	// ExhaustionStopWorker additionally stops and deregisters the worker that
	// owns the failing shard, surrendering its leases.
	ExhaustionStopWorker
)

func (p ExhaustionPolicy) String() string {
	switch p {
	case ExhaustionSkipBatch:
		return "SkipBatch"
	case ExhaustionStopWorker:
		return "StopWorker"
	default:
		return "Unknown"
	}
}

// Config is the immutable configuration shared read-only by every worker a
// Manager starts. Build it with NewConfig; do not mutate it afterwards.
type Config struct {
	ApplicationName string
	StreamName      string
	Region          string
	WorkerID        string

	// CheckpointInterval bounds how often progress is persisted in the
	// auto-checkpoint modes. Zero or negative disables internal
	// checkpointing entirely (manual mode).
	CheckpointInterval time.Duration

	MaxRetries   int
	RetryBackoff backoff.Backoff
	Exhaustion   ExhaustionPolicy

	InitHook     InitHook
	ShutdownHook ShutdownHook

	Logger logger.Logger

	// Collaborator bindings, all optional.
	KCLLogger        kcllogger.Logger
	Monitoring       metrics.MonitoringService
	Checkpointer     chk.Checkpointer
	Credentials      aws.CredentialsProvider
	KinesisEndpoint  string
	DynamoDBEndpoint string
	MaxRecords       int
	InitialPosition  kclconfig.InitialPositionInStream
}

type Option func(*Config)

// newRetryBackoff builds the doubling schedule used for batch retries,
// capped at max.
func newRetryBackoff(initial, max time.Duration) backoff.Backoff {
	return backoff.NewExponential(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(max),
		backoff.WithMultiplier(2),
	)
}

func NewConfig(applicationName, streamName, region string, opts ...Option) Config {
	c := Config{
		ApplicationName:    applicationName,
		StreamName:         streamName,
		Region:             region,
		CheckpointInterval: 30 * time.Second,
		MaxRetries:         3,
		RetryBackoff:       newRetryBackoff(100*time.Millisecond, 10*time.Second),
		Exhaustion:         ExhaustionSkipBatch,
		Logger:             logger.NewNoopLogger(),
		InitialPosition:    kclconfig.LATEST,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return c
}

func WithWorkerID(id string) Option {
	return func(c *Config) {
		c.WorkerID = id
	}
}

// WithCheckpointInterval sets the minimum interval between automatic
// checkpoints. d <= 0 disables automatic checkpointing.
func WithCheckpointInterval(d time.Duration) Option {
	return func(c *Config) {
		c.CheckpointInterval = d
	}
}

// WithRetryPolicy sets how many times a failing batch is retried and the
// exponential delay bounds between attempts.
func WithRetryPolicy(maxRetries int, initialDelay, maxDelay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryBackoff = newRetryBackoff(initialDelay, maxDelay)
	}
}

// WithRetryBackoff replaces the retry delay schedule entirely.
func WithRetryBackoff(b backoff.Backoff) Option {
	return func(c *Config) {
		if b != nil {
			c.RetryBackoff = b
		}
	}
}

func WithExhaustionPolicy(p ExhaustionPolicy) Option {
	return func(c *Config) {
		c.Exhaustion = p
	}
}

func WithInitHook(h InitHook) Option {
	return func(c *Config) {
		c.InitHook = h
	}
}

func WithShutdownHook(h ShutdownHook) Option {
	return func(c *Config) {
		c.ShutdownHook = h
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithKCLLogger forwards a logger to the collaborator's own configuration.
func WithKCLLogger(l kcllogger.Logger) Option {
	return func(c *Config) {
		c.KCLLogger = l
	}
}

// WithMonitoring attaches a metrics sink (e.g. the KCL prometheus service) to
// every worker built from this config.
func WithMonitoring(m metrics.MonitoringService) Option {
	return func(c *Config) {
		c.Monitoring = m
	}
}

// WithCheckpointer selects an alternate checkpoint storage backend (DynamoDB
// is the collaborator default; Redis is available).
func WithCheckpointer(cp chk.Checkpointer) Option {
	return func(c *Config) {
		c.Checkpointer = cp
	}
}

// WithCredentials sets the credentials provider used for both the Kinesis and
// the lease-table clients.
func WithCredentials(creds aws.CredentialsProvider) Option {
	return func(c *Config) {
		c.Credentials = creds
	}
}

// WithKinesisEndpoint points the transport at an alternate Kinesis endpoint
// (localstack, VPC endpoints).
func WithKinesisEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.KinesisEndpoint = endpoint
	}
}

func WithDynamoDBEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.DynamoDBEndpoint = endpoint
	}
}

func WithMaxRecords(n int) Option {
	return func(c *Config) {
		c.MaxRecords = n
	}
}

func WithInitialPosition(p kclconfig.InitialPositionInStream) Option {
	return func(c *Config) {
		c.InitialPosition = p
	}
}
