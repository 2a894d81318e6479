// Package logger provides structured logging capabilities for the application.
package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/draftforge/draftforge/internal/model"
)

const (
	// FieldJobID is the field key for generation job ID in log entries
	FieldJobID = "job_id"

	// bufferSize is the size of the log buffer before flushing to database
	bufferSize = 100
	// flushInterval is the interval for periodic buffer flushing
	flushInterval = 5 * time.Second
)

// JobLogWriter defines the interface for writing job logs to storage.
// This abstraction allows the logger package to remain independent of database packages.
type JobLogWriter interface {
	// Write writes a batch of job logs to storage
	Write(logs []model.JobLog) error
}

// JobLogHook captures logs containing a job_id field and writes them to
// the job log store so each generation run has a queryable trail.
type JobLogHook struct {
	writer JobLogWriter

	// Buffer for batch writes
	buffer []model.JobLog
	mu     sync.Mutex

	// Background flushing
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewJobLogHook creates a new JobLogHook with the given writer.
func NewJobLogHook(writer JobLogWriter) *JobLogHook {
	hook := &JobLogHook{
		writer: writer,
		buffer: make([]model.JobLog, 0, bufferSize),
		stopCh: make(chan struct{}),
	}

	// Start background flushing goroutine
	hook.wg.Add(1)
	go hook.backgroundFlush()

	return hook
}

// jobLogCore wraps a zapcore.Core to intercept logs and capture job-related entries.
type jobLogCore struct {
	zapcore.Core
	hook   *JobLogHook
	fields []zapcore.Field
}

// WrapCore wraps a zapcore.Core with the JobLogHook to capture job-related logs.
func (h *JobLogHook) WrapCore(core zapcore.Core) zapcore.Core {
	return &jobLogCore{
		Core:   core,
		hook:   h,
		fields: nil,
	}
}

// With creates a new Core with additional fields.
func (c *jobLogCore) With(fields []zapcore.Field) zapcore.Core {
	// Merge fields
	newFields := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	newFields = append(newFields, c.fields...)
	newFields = append(newFields, fields...)

	return &jobLogCore{
		Core:   c.Core.With(fields),
		hook:   c.hook,
		fields: newFields,
	}
}

// Check determines whether the supplied Entry should be logged.
func (c *jobLogCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

// Write intercepts log writes to capture job-related logs.
func (c *jobLogCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	// First, write to the underlying core
	if err := c.Core.Write(entry, fields); err != nil {
		return err
	}

	// Combine with context fields
	allFields := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	allFields = append(allFields, c.fields...)
	allFields = append(allFields, fields...)

	// Check if this log carries a job id
	jobID := extractJobID(allFields)
	if jobID == "" {
		return nil
	}

	// Create JobLog entry
	jobLog := model.JobLog{
		CreatedAt: entry.Time,
		JobID:     jobID,
		Level:     convertLevel(entry.Level),
		Message:   entry.Message,
		Caller:    entry.Caller.String(),
		Fields:    serializeFields(allFields),
	}

	// Add to buffer
	c.hook.addToBuffer(jobLog)

	return nil
}

// Sync flushes any buffered logs.
func (c *jobLogCore) Sync() error {
	c.hook.Flush()
	return c.Core.Sync()
}

// addToBuffer adds a log entry to the buffer.
func (h *JobLogHook) addToBuffer(log model.JobLog) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buffer = append(h.buffer, log)

	// Flush if buffer is full
	if len(h.buffer) >= bufferSize {
		h.flushLocked()
	}
}

// Flush writes all buffered logs to storage.
func (h *JobLogHook) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flushLocked()
}

// flushLocked writes buffered logs to storage (must be called with lock held).
func (h *JobLogHook) flushLocked() {
	if len(h.buffer) == 0 {
		return
	}

	logs := h.buffer
	h.buffer = make([]model.JobLog, 0, bufferSize)

	// Write to storage (non-blocking)
	go func(logs []model.JobLog) {
		if err := h.writer.Write(logs); err != nil {
			// Log error to stderr (avoid recursive logging)
			fmt.Fprintf(os.Stderr, "Failed to write job logs: %v\n", err)
		}
	}(logs)
}

// backgroundFlush periodically flushes the buffer.
func (h *JobLogHook) backgroundFlush() {
	defer h.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Flush()
		case <-h.stopCh:
			h.Flush()
			return
		}
	}
}

// Close stops the background flushing and flushes remaining logs.
func (h *JobLogHook) Close() {
	close(h.stopCh)
	h.wg.Wait()
}

// extractJobID extracts the job id from log fields.
func extractJobID(fields []zapcore.Field) string {
	for _, field := range fields {
		if field.Key == FieldJobID && field.String != "" {
			return field.String
		}
	}
	return ""
}

// convertLevel converts zapcore.Level to model.LogLevel.
func convertLevel(level zapcore.Level) model.LogLevel {
	switch level {
	case zapcore.DebugLevel:
		return model.LogLevelDebug
	case zapcore.InfoLevel:
		return model.LogLevelInfo
	case zapcore.WarnLevel:
		return model.LogLevelWarn
	case zapcore.ErrorLevel:
		return model.LogLevelError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return model.LogLevelFatal
	default:
		return model.LogLevelInfo
	}
}

// serializeFields converts zapcore.Field slice to model.JSONMap.
func serializeFields(fields []zapcore.Field) model.JSONMap {
	if len(fields) == 0 {
		return model.JSONMap{}
	}

	data := make(model.JSONMap)
	for _, field := range fields {
		// Skip the job identification field (already stored separately)
		if field.Key == FieldJobID {
			continue
		}

		switch field.Type {
		case zapcore.StringType:
			data[field.Key] = field.String
		case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
			data[field.Key] = field.Integer
		case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
			data[field.Key] = uint64(field.Integer)
		case zapcore.Float64Type, zapcore.Float32Type:
			data[field.Key] = field.Integer
		case zapcore.BoolType:
			data[field.Key] = field.Integer == 1
		case zapcore.DurationType:
			data[field.Key] = time.Duration(field.Integer).String()
		case zapcore.TimeType, zapcore.TimeFullType:
			if t, ok := field.Interface.(time.Time); ok {
				data[field.Key] = t.Format(time.RFC3339)
			}
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok && err != nil {
				data[field.Key] = err.Error()
			}
		default:
			if field.Interface != nil {
				data[field.Key] = fmt.Sprint(field.Interface)
			}
		}
	}

	return data
}
