// Package activity writes the per-queue lifecycle log.
//
// One line per event, appended:
//
//	QUEUED : (PID 4242-0a1b2c3d) @2026-10-18 09:14:03.120044
package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pixperk/flockq/pkg/types"
)

// microsecond precision, UTC
const TimestampLayout = "2006-01-02 15:04:05.000000"

type Recorder interface {
	Record(holder string, event types.Event) error
	Close() error
}

// formats one log line, without the trailing newline
func Format(e types.LogEntry) string {
	return fmt.Sprintf("%s : (PID %s) @%s", e.Event, e.Holder, e.Timestamp.UTC().Format(TimestampLayout))
}

// FileRecorder appends lines to a log file
// each line goes out in a single write on an O_APPEND handle, so lines from
// several processes interleave but never tear
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

func OpenFile(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}
	return &FileRecorder{file: f, now: time.Now}, nil
}

func (r *FileRecorder) Record(holder string, event types.Event) error {
	line := Format(types.LogEntry{
		Holder:    holder,
		Event:     event,
		Timestamp: r.now(),
	}) + "\n"

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return os.ErrClosed
	}
	if _, err := r.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	return nil
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

type nop struct{}

// recorder used when the activity log is disabled
func Nop() Recorder { return nop{} }

func (nop) Record(string, types.Event) error { return nil }
func (nop) Close() error                      { return nil }
