package usage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// Event is one metered agent call. Events are written as NDJSON, one file
// per session key.
type Event struct {
	Timestamp    string  `json:"ts"`
	EventID      string  `json:"event_id"`
	SessionKey   string  `json:"session_key"`
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Recorder accepts usage events. Record must never block or fail the turn
// that produced the event.
type Recorder interface {
	Record(event Event)
	Close() error
}

// RecorderConfig controls the file recorder.
type RecorderConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// NewRecorder creates a file-backed recorder, or a no-op one when disabled.
func NewRecorder(cfg RecorderConfig, logger *slog.Logger) (Recorder, error) {
	if !cfg.Enabled {
		return noopRecorder{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create usage log directory: %w", err)
	}

	r := &fileRecorder{
		dir:    cfg.Dir,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go r.run()
	return r, nil
}

type fileRecorder struct {
	dir       string
	queue     chan Event
	done      chan struct{}
	logger    *slog.Logger
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// Record enqueues the event, dropping it when the queue is full or the
// recorder is closed. Metering must never slow down or fail a turn, and a
// turn can still finish while the server is shutting down.
func (r *fileRecorder) Record(event Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("usage event dropped, recorder closed", "session_key", event.SessionKey)
		return
	}
	select {
	case r.queue <- event:
	default:
		r.logger.Warn("usage event dropped, queue full", "session_key", event.SessionKey)
	}
}

// Close drains pending events and stops the writer goroutine.
func (r *fileRecorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
	})
	return nil
}

func (r *fileRecorder) run() {
	defer close(r.done)
	for event := range r.queue {
		if err := r.append(event); err != nil {
			r.logger.Warn("failed to write usage event", "error", err, "session_key", event.SessionKey)
		}
	}
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func (r *fileRecorder) append(event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	name := unsafeKeyChars.ReplaceAllString(event.SessionKey, "_")
	if name == "" {
		name = "unknown"
	}
	path := filepath.Join(r.dir, name+".ndjson")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open usage log: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			r.logger.Warn("failed to close usage log", "error", closeErr)
		}
	}()

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode usage event: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append usage event: %w", err)
	}
	return nil
}

type noopRecorder struct{}

func (noopRecorder) Record(Event) {}
func (noopRecorder) Close() error { return nil }
