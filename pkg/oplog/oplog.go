// Package oplog records workflow operations. Every entry lands in a
// bounded in-memory ring for cheap recall over MCP; a Log can also fan
// entries out to a durable sink and the process logger.
package oplog

import (
	"time"

	"go.uber.org/zap"

	"github.com/loomlab/loom/pkg/metrics"
)

// Level classifies an entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is one recorded operation.
type Entry struct {
	Time       time.Time      `json:"time"`
	Level      Level          `json:"level"`
	Op         string         `json:"op"`
	Message    string         `json:"message"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Sink receives every entry appended to a Log. Implementations must be
// safe for concurrent use.
type Sink interface {
	Append(e Entry) error
	Close() error
}

// Log is the recording front. Appends go to the ring unconditionally,
// then to the sink when one is configured, and are mirrored to the
// process logger. A sink failure is logged and otherwise swallowed: the
// operation that produced the entry must not fail because history could
// not be persisted.
type Log struct {
	ring   *Ring
	sink   Sink
	logger *zap.Logger
}

// New builds a Log. ring defaults to a fresh default-capacity ring, sink
// may be nil, and logger defaults to a no-op logger.
func New(ring *Ring, sink Sink, logger *zap.Logger) *Log {
	if ring == nil {
		ring = NewRing(DefaultCapacity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{ring: ring, sink: sink, logger: logger}
}

// Ring returns the in-memory buffer backing the log.
func (l *Log) Ring() *Ring { return l.ring }

// Record appends one entry at the given level.
func (l *Log) Record(level Level, op, workflowID, msg string, details map[string]any) {
	e := Entry{
		Time:       time.Now().UTC(),
		Level:      level,
		Op:         op,
		Message:    msg,
		WorkflowID: workflowID,
		Details:    details,
	}
	l.ring.Append(e)
	metrics.OplogEntriesTotal.WithLabelValues(string(level)).Inc()

	if l.sink != nil {
		if err := l.sink.Append(e); err != nil {
			l.logger.Warn("oplog sink append failed", zap.String("op", op), zap.Error(err))
		}
	}

	fields := []zap.Field{zap.String("op", op)}
	if workflowID != "" {
		fields = append(fields, zap.String("workflow_id", workflowID))
	}
	if details != nil {
		fields = append(fields, zap.Any("details", details))
	}
	switch level {
	case LevelDebug:
		l.logger.Debug(msg, fields...)
	case LevelWarn:
		l.logger.Warn(msg, fields...)
	case LevelError:
		l.logger.Error(msg, fields...)
	default:
		l.logger.Info(msg, fields...)
	}
}

// Debug records a debug-level entry.
func (l *Log) Debug(op, workflowID, msg string, details map[string]any) {
	l.Record(LevelDebug, op, workflowID, msg, details)
}

// Info records an info-level entry.
func (l *Log) Info(op, workflowID, msg string, details map[string]any) {
	l.Record(LevelInfo, op, workflowID, msg, details)
}

// Warn records a warn-level entry.
func (l *Log) Warn(op, workflowID, msg string, details map[string]any) {
	l.Record(LevelWarn, op, workflowID, msg, details)
}

// Error records an error-level entry.
func (l *Log) Error(op, workflowID, msg string, details map[string]any) {
	l.Record(LevelError, op, workflowID, msg, details)
}

// Close releases the sink, if any.
func (l *Log) Close() error {
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}
