//go:build unit

package kinesis

import (
	"sync"

	kcl "github.com/ODudek/go-kcl/clientlibrary/interfaces"
	"github.com/aws/aws-sdk-go-v2/aws"
	ktypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

func makeRecord(seq, partitionKey, data string) ktypes.Record {
	return ktypes.Record{
		SequenceNumber: aws.String(seq),
		PartitionKey:   aws.String(partitionKey),
		Data:           []byte(data),
	}
}

func makeBatch(records ...ktypes.Record) *kcl.ProcessRecordsInput {
	return &kcl.ProcessRecordsInput{
		Records:      records,
		Checkpointer: newFakeCheckpointer(),
	}
}

// fakeCheckpointer records every Checkpoint call. A nil sequence number is
// recorded as "SHARD_END" so tests can assert on terminal checkpoints.
type fakeCheckpointer struct {
	mu    sync.Mutex
	err   error
	calls []string
}

var _ kcl.IRecordProcessorCheckpointer = (*fakeCheckpointer)(nil)

func newFakeCheckpointer() *fakeCheckpointer {
	return &fakeCheckpointer{}
}

func (f *fakeCheckpointer) Checkpoint(sequenceNumber *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sequenceNumber == nil {
		f.calls = append(f.calls, "SHARD_END")
	} else {
		f.calls = append(f.calls, *sequenceNumber)
	}
	return f.err
}

func (f *fakeCheckpointer) PrepareCheckpoint(sequenceNumber *string) (kcl.IPreparedCheckpointer, error) {
	return nil, nil
}

func (f *fakeCheckpointer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeWorker stands in for a collaborator worker. Shutdown optionally blocks
// on release so shutdown timeouts can be exercised.
type fakeWorker struct {
	startErr error
	release  chan struct{}

	mu        sync.Mutex
	started   int
	shutdowns int
}

var _ workerHandle = (*fakeWorker)(nil)

func newFakeWorker() *fakeWorker {
	return &fakeWorker{}
}

func newBlockedFakeWorker() *fakeWorker {
	return &fakeWorker{release: make(chan struct{})}
}

func (w *fakeWorker) Start() error {
	w.mu.Lock()
	w.started++
	w.mu.Unlock()
	return w.startErr
}

func (w *fakeWorker) Shutdown() {
	if w.release != nil {
		<-w.release
	}
	w.mu.Lock()
	w.shutdowns++
	w.mu.Unlock()
}

func (w *fakeWorker) Shutdowns() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shutdowns
}

// captureWorkers is a workerFactory that hands out the prepared workers in
// order and keeps the record-processor factories the manager built, so tests
// can drive processors directly.
type captureWorkers struct {
	mu        sync.Mutex
	workers   []*fakeWorker
	factories []kcl.IRecordProcessorFactory
}

func (c *captureWorkers) factory(cfg Config, factory kcl.IRecordProcessorFactory) workerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories = append(c.factories, factory)
	w := c.workers[len(c.factories)-1]
	return w
}

func (c *captureWorkers) processor(i int) kcl.IRecordProcessor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factories[i].CreateProcessor()
}
