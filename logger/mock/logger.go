package mocklogger

import (
	"sync"

	"github.com/mikegirkin/gfc-aws-kinesis/logger"
)

var _ logger.Logger = (*MockLogger)(nil)

type LogEntry struct {
	Level   logger.LogLevel
	Message string
	KV      []any
}

// MockLogger records every log call for later assertions. It is safe for
// concurrent use because record processors log from collaborator goroutines.
type MockLogger struct {
	mu      sync.Mutex
	entries []LogEntry
	args    []any
}

func New() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Log(level logger.LogLevel, msg string, kv ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(
		m.entries, LogEntry{
			Level:   level,
			Message: msg,
			KV:      kv,
		},
	)
}

func (m *MockLogger) Level() logger.LogLevel {
	return logger.DebugLevel
}

func (m *MockLogger) With(kv ...any) logger.Logger {
	return &childLogger{parent: m, args: append(append([]any{}, m.args...), kv...)}
}

func (m *MockLogger) Debug(msg string, kv ...any) {
	m.Log(logger.DebugLevel, msg, kv...)
}

func (m *MockLogger) Info(msg string, kv ...any) {
	m.Log(logger.InfoLevel, msg, kv...)
}

func (m *MockLogger) Warn(msg string, kv ...any) {
	m.Log(logger.WarnLevel, msg, kv...)
}

func (m *MockLogger) Error(msg string, kv ...any) {
	m.Log(logger.ErrorLevel, msg, kv...)
}

func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// childLogger forwards to the parent so assertions see entries logged
// through With-derived loggers.
type childLogger struct {
	parent *MockLogger
	args   []any
}

var _ logger.Logger = (*childLogger)(nil)

func (c *childLogger) Log(level logger.LogLevel, msg string, kv ...any) {
	c.parent.Log(level, msg, append(append([]any{}, c.args...), kv...)...)
}

func (c *childLogger) Level() logger.LogLevel { return logger.DebugLevel }

func (c *childLogger) With(kv ...any) logger.Logger {
	return &childLogger{parent: c.parent, args: append(append([]any{}, c.args...), kv...)}
}

func (c *childLogger) Debug(msg string, kv ...any) { c.Log(logger.DebugLevel, msg, kv...) }
func (c *childLogger) Info(msg string, kv ...any)  { c.Log(logger.InfoLevel, msg, kv...) }
func (c *childLogger) Warn(msg string, kv ...any)  { c.Log(logger.WarnLevel, msg, kv...) }
func (c *childLogger) Error(msg string, kv ...any) { c.Log(logger.ErrorLevel, msg, kv...) }
