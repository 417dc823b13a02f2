//go:build unit

package kinesis

import (
	"testing"
	"time"

	kclconfig "github.com/ODudek/go-kcl/clientlibrary/config"
	"github.com/hugolhafner/dskit/backoff"
	"github.com/stretchr/testify/require"

	mocklogger "github.com/mikegirkin/gfc-aws-kinesis/logger/mock"
)

func TestNewConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := NewConfig("app", "stream", "us-east-1")

	require.Equal(t, "app", cfg.ApplicationName)
	require.Equal(t, "stream", cfg.StreamName)
	require.Equal(t, "us-east-1", cfg.Region)
	require.Equal(t, 30*time.Second, cfg.CheckpointInterval)
	require.Equal(t, 3, cfg.MaxRetries)
	require.NotNil(t, cfg.RetryBackoff)
	require.Equal(t, ExhaustionSkipBatch, cfg.Exhaustion)
	require.NotNil(t, cfg.Logger)
	require.Equal(t, kclconfig.LATEST, cfg.InitialPosition)
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	log := mocklogger.New()
	fixed := backoff.NewFixed(time.Second)

	cfg := NewConfig(
		"app", "stream", "eu-west-1",
		WithWorkerID("worker-1"),
		WithCheckpointInterval(0),
		WithRetryBackoff(fixed),
		WithExhaustionPolicy(ExhaustionStopWorker),
		WithLogger(log),
		WithKinesisEndpoint("http://localhost:4566"),
		WithDynamoDBEndpoint("http://localhost:4566"),
		WithMaxRecords(500),
		WithInitialPosition(kclconfig.TRIM_HORIZON),
	)

	require.Equal(t, "worker-1", cfg.WorkerID)
	require.Equal(t, time.Duration(0), cfg.CheckpointInterval)
	require.Equal(t, fixed, cfg.RetryBackoff)
	require.Equal(t, ExhaustionStopWorker, cfg.Exhaustion)
	require.Equal(t, log, cfg.Logger)
	require.Equal(t, "http://localhost:4566", cfg.KinesisEndpoint)
	require.Equal(t, 500, cfg.MaxRecords)
	require.Equal(t, kclconfig.TRIM_HORIZON, cfg.InitialPosition)
}

func TestWithRetryPolicy(t *testing.T) {
	t.Parallel()

	cfg := NewConfig("app", "stream", "us-east-1", WithRetryPolicy(5, 50*time.Millisecond, time.Second))

	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, 50*time.Millisecond, cfg.RetryBackoff.Next(1))
	require.Equal(t, 100*time.Millisecond, cfg.RetryBackoff.Next(2))
	require.Equal(t, time.Second, cfg.RetryBackoff.Next(20))
}

func TestExhaustionPolicyString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SkipBatch", ExhaustionSkipBatch.String())
	require.Equal(t, "StopWorker", ExhaustionStopWorker.String())
	require.Equal(t, "Unknown", ExhaustionPolicy(42).String())
}
