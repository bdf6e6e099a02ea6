package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// Event is one timed operation: an ingest, a clustering run, a completion
// call or a query.
type Event struct {
	ID           string    `parquet:"id"`
	Timestamp    time.Time `parquet:"timestamp"`
	Operation    string    `parquet:"operation"`
	Subject      string    `parquet:"subject"`
	DurationMS   int64     `parquet:"duration_ms"`
	InputTokens  int       `parquet:"input_tokens"`
	OutputTokens int       `parquet:"output_tokens"`
	Error        string    `parquet:"error"`
}

// Recorder batches operation events into Parquet files.
type Recorder struct {
	outputDir string
	mu        sync.Mutex
	buffer    []Event
	batchSize int
}

// NewRecorder creates an event recorder writing under outputDir.
func NewRecorder(outputDir string) (*Recorder, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	return &Recorder{
		outputDir: outputDir,
		batchSize: 100,
		buffer:    make([]Event, 0, 100),
	}, nil
}

// Record buffers one event. The id and timestamp are filled in when absent.
func (r *Recorder) Record(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, event)
	if len(r.buffer) >= r.batchSize {
		_ = r.flush()
	}
}

// Observe times one operation and records it.
func (r *Recorder) Observe(operation, subject string, start time.Time, err error) {
	event := Event{
		Operation:  operation,
		Subject:    subject,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	r.Record(event)
}

// Flush writes buffered events out.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush()
}

// flush writes the buffer to a new Parquet file. Caller must hold the lock.
func (r *Recorder) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}
	filename := fmt.Sprintf("events_%s_%d.parquet", time.Now().Format("20060102_150405"), time.Now().UnixNano())
	path := filepath.Join(r.outputDir, filename)
	if err := parquet.WriteFile(path, r.buffer); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write telemetry parquet file: %v\n", err)
		return err
	}
	r.buffer = r.buffer[:0]
	return nil
}
