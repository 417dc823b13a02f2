// Package kinesis is a record-processing front end for Amazon Kinesis
// streams. Shard discovery, lease coordination and checkpoint storage are
// owned by the Kinesis Client Library; this package sits directly on top of
// it and adds typed record conversion, retry/backoff and checkpoint-interval
// policy, three processing modes, and a bounded backpressured stream bridge.
package kinesis

import (
	"sync"
	"time"

	kclconfig "github.com/ODudek/go-kcl/clientlibrary/config"
	kcl "github.com/ODudek/go-kcl/clientlibrary/interfaces"
	wk "github.com/ODudek/go-kcl/clientlibrary/worker"

	"github.com/mikegirkin/gfc-aws-kinesis/logger"
	"github.com/mikegirkin/gfc-aws-kinesis/serde"
)

// workerHandle is the slice of the collaborator's worker surface the manager
// needs: start once, cooperative blocking stop.
type workerHandle interface {
	Start() error
	Shutdown()
}

type workerFactory func(cfg Config, factory kcl.IRecordProcessorFactory) workerHandle

var _ workerHandle = (*wk.Worker)(nil)

// newKCLWorker binds a record-processor factory and the configuration to a
// new collaborator worker.
func newKCLWorker(cfg Config, factory kcl.IRecordProcessorFactory) workerHandle {
	kclCfg := kclconfig.NewKinesisClientLibConfigWithCredential(
		cfg.ApplicationName,
		cfg.StreamName,
		cfg.Region,
		cfg.WorkerID,
		cfg.Credentials,
	).WithInitialPositionInStream(cfg.InitialPosition)

	if cfg.KinesisEndpoint != "" {
		kclCfg.WithKinesisEndpoint(cfg.KinesisEndpoint)
	}
	if cfg.DynamoDBEndpoint != "" {
		kclCfg.WithDynamoDBEndpoint(cfg.DynamoDBEndpoint)
	}
	if cfg.MaxRecords > 0 {
		kclCfg.WithMaxRecords(cfg.MaxRecords)
	}
	if cfg.Monitoring != nil {
		kclCfg.WithMonitoringService(cfg.Monitoring)
	}
	if cfg.KCLLogger != nil {
		kclCfg.WithLogger(cfg.KCLLogger)
	}

	worker := wk.NewWorker(factory, kclCfg)
	if cfg.Checkpointer != nil {
		worker = worker.WithCheckpointer(cfg.Checkpointer)
	}
	return worker
}

// Manager owns the set of live workers started from one Config. Multiple
// independent managers can coexist; the tracked set is never global state.
type Manager[T any] struct {
	config       Config
	deserialiser serde.Deserialiser[T]
	logger       logger.Logger
	newWorker    workerFactory

	mu      sync.Mutex
	workers []workerHandle
}

func NewManager[T any](cfg Config, d serde.Deserialiser[T]) *Manager[T] {
	return &Manager[T]{
		config:       cfg,
		deserialiser: d,
		logger:       cfg.Logger.With("component", "manager", "stream", cfg.StreamName),
		newWorker:    newKCLWorker,
	}
}

// RunBatchProcessing starts a worker that hands each delivered batch's
// converted records to the handler in one call.
func (m *Manager[T]) RunBatchProcessing(handler BatchHandler[T]) {
	m.runWith(newSyncRun(m.deserialiser, m.config.StreamName, toInternal(handler), m.logger))
}

// RunSingleRecordProcessing starts a worker that invokes the handler once per
// converted record, in delivery order.
func (m *Manager[T]) RunSingleRecordProcessing(handler RecordHandler[T]) {
	m.runWith(newSyncRun(m.deserialiser, m.config.StreamName, eachRecord(handler), m.logger))
}

// RunAsyncSingleRecordProcessing starts a worker that processes the records
// of each batch concurrently, bounded by concurrency, with a mandatory
// per-batch deadline.
func (m *Manager[T]) RunAsyncSingleRecordProcessing(handler AsyncRecordHandler[T], timeout time.Duration, concurrency int) {
	m.runWith(newAsyncRun(m.deserialiser, m.config.StreamName, handler, timeout, concurrency, m.logger))
}

// runBatchInternal is the bridge entry point; it keeps access to the raw
// records behind the converted values.
func (m *Manager[T]) runBatchInternal(handler internalBatchHandler[T]) {
	m.runWith(newSyncRun(m.deserialiser, m.config.StreamName, handler, m.logger))
}

// runWith builds the record-processor factory, binds it to a new worker,
// starts the worker and registers it for shutdown tracking. Start failures
// are logged, never propagated: starting a worker is a fire-and-forget
// boundary, distinct from per-batch retry.
func (m *Manager[T]) runWith(run batchRun) {
	pc := processorConfig{
		run:                run,
		maxRetries:         m.config.MaxRetries,
		retryBackoff:       m.config.RetryBackoff,
		exhaustion:         m.config.Exhaustion,
		checkpointInterval: m.config.CheckpointInterval,
		initHook:           m.config.InitHook,
		shutdownHook:       m.config.ShutdownHook,
		logger:             m.logger,
	}

	var handle workerHandle
	pc.fatal = func(err error) {
		m.logger.Error("stopping worker after exhausted retries", "error", err)
		go m.stopWorker(handle)
	}

	handle = m.newWorker(m.config, &recordProcessorFactory{config: pc})

	if err := handle.Start(); err != nil {
		m.logger.Error("failed to start worker", "error", err)
		return
	}

	m.mu.Lock()
	m.workers = append(m.workers, handle)
	m.mu.Unlock()

	m.logger.Info("worker started", "application", m.config.ApplicationName)
}

// Shutdown requests a graceful stop on every tracked worker and waits for
// the acknowledgements. The tracked set is swapped for empty exactly once,
// so a second call is a no-op and no worker is asked to stop twice.
// timeout <= 0 waits unboundedly; otherwise ErrShutdownTimeout is returned
// when the deadline passes with workers still stopping.
func (m *Manager[T]) Shutdown(timeout time.Duration) error {
	m.mu.Lock()
	workers := m.workers
	m.workers = nil
	m.mu.Unlock()

	if len(workers) == 0 {
		return nil
	}

	m.logger.Info("shutting down workers", "count", len(workers))

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w workerHandle) {
			defer wg.Done()
			w.Shutdown()
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		m.logger.Info("all workers stopped")
		return nil
	}

	select {
	case <-done:
		m.logger.Info("all workers stopped")
		return nil
	case <-time.After(timeout):
		m.logger.Warn("timeout waiting for workers to stop", "timeout", timeout)
		return ErrShutdownTimeout
	}
}

// WorkerCount returns the number of currently tracked workers.
func (m *Manager[T]) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// stopWorker deregisters and stops a single worker, leaving the rest of the
// tracked set running.
func (m *Manager[T]) stopWorker(h workerHandle) {
	m.mu.Lock()
	for i, w := range m.workers {
		if w == h {
			m.workers = append(m.workers[:i], m.workers[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	h.Shutdown()
}
