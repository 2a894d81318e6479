package logger

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/draftforge/draftforge/internal/model"
)

// captureWriter records job logs written through the hook
type captureWriter struct {
	mu   sync.Mutex
	logs []model.JobLog
}

func (w *captureWriter) Write(logs []model.JobLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logs = append(w.logs, logs...)
	return nil
}

func (w *captureWriter) snapshot() []model.JobLog {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.JobLog, len(w.logs))
	copy(out, w.logs)
	return out
}

// hookLogger builds a zap logger whose core is wrapped by the hook
func hookLogger(hook *JobLogHook) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(discardSyncer{}),
		zapcore.DebugLevel,
	)
	return zap.New(hook.WrapCore(core))
}

type discardSyncer struct{}

func (discardSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (discardSyncer) Sync() error                 { return nil }

func TestJobLogHook_CapturesJobEntries(t *testing.T) {
	writer := &captureWriter{}
	hook := NewJobLogHook(writer)
	defer hook.Close()

	l := hookLogger(hook)
	l.Info("section completed",
		zap.String(FieldJobID, "job-abc"),
		zap.String("section", "Introduction"),
	)
	l.Error("section failed", zap.String(FieldJobID, "job-abc"))

	hook.Flush()

	// Flush hands the batch to the writer asynchronously
	deadline := time.Now().Add(2 * time.Second)
	var got []model.JobLog
	for time.Now().Before(deadline) {
		got = writer.snapshot()
		if len(got) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 captured logs, got %d", len(got))
	}
	if got[0].JobID != "job-abc" {
		t.Errorf("JobID = %q, want job-abc", got[0].JobID)
	}
	if got[0].Message != "section completed" {
		t.Errorf("Message = %q, want 'section completed'", got[0].Message)
	}
	if got[1].Level != model.LogLevelError {
		t.Errorf("Level = %q, want error", got[1].Level)
	}
}

func TestJobLogHook_IgnoresEntriesWithoutJobID(t *testing.T) {
	writer := &captureWriter{}
	hook := NewJobLogHook(writer)
	defer hook.Close()

	l := hookLogger(hook)
	l.Info("plain entry with no job field")

	hook.Flush()
	time.Sleep(50 * time.Millisecond)

	if got := writer.snapshot(); len(got) != 0 {
		t.Errorf("Expected no captured logs, got %d", len(got))
	}
}

func TestJobLogHook_WithScopedFields(t *testing.T) {
	writer := &captureWriter{}
	hook := NewJobLogHook(writer)
	defer hook.Close()

	// The job id arrives via With, not on the individual entry
	l := hookLogger(hook).With(zap.String(FieldJobID, "job-scoped"))
	l.Info("progress", zap.Int("cursor", 3))

	hook.Flush()

	deadline := time.Now().Add(2 * time.Second)
	var got []model.JobLog
	for time.Now().Before(deadline) {
		got = writer.snapshot()
		if len(got) >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(got) != 1 {
		t.Fatalf("Expected 1 captured log, got %d", len(got))
	}
	if got[0].JobID != "job-scoped" {
		t.Errorf("JobID = %q, want job-scoped", got[0].JobID)
	}
}
