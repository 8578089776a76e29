package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pixperk/flockq/pkg/logger"
	"github.com/pixperk/flockq/pkg/metrics"
	"github.com/pixperk/flockq/pkg/types"
)

const (
	QueueExt = ".queue"
	LogExt   = ".log"
)

// Store owns the shared queue file handle of one queue instance
// it does no locking across processes, callers must hold a lock span
// (see pkg/lock) around every ReadAll/WriteAll sequence
type Store struct {
	mu     sync.Mutex
	name   string
	path   string
	file   *os.File
	logger logger.Logger
}

// checks a queue name is usable as a file name stem
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", types.ErrInvalidQueueName, name)
	}
	return nil
}

// <dir>/<name>.queue
func QueuePath(dir, name string) string {
	return filepath.Join(dir, name+QueueExt)
}

// <dir>/<name>.log
func LogPath(dir, name string) string {
	return filepath.Join(dir, name+LogExt)
}

// opens (creating if needed) the queue file for name under dir
func Open(dir, name string, log logger.Logger) (*Store, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue dir: %w", err)
	}

	path := QueuePath(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue file: %w", err)
	}

	return &Store{
		name:   name,
		path:   path,
		file:   f,
		logger: log.With("queue", name),
	}, nil
}

func (s *Store) Path() string { return s.path }

// reads the whole ticket list
// missing or undecodable content is an empty queue, only I/O errors are returned
func (s *Store) ReadAll() (types.Tickets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil, os.ErrClosed
	}

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek queue file: %w", err)
	}
	data, err := io.ReadAll(s.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}

	tickets, err := Decode(data)
	if err != nil {
		//availability over strictness: a corrupt queue restarts empty
		s.logger.Warn("queue file unreadable, treating as empty",
			"path", s.path,
			"bytes", len(data),
			"error", err,
		)
		metrics.StoreCorruptTotal.WithLabelValues(s.name).Inc()
		return types.Tickets{}, nil
	}

	metrics.TicketsQueued.WithLabelValues(s.name).Set(float64(len(tickets)))
	return tickets, nil
}

// rewrites the whole file, truncating to the new length
func (s *Store) WriteAll(tickets types.Tickets) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return os.ErrClosed
	}

	data := Encode(tickets)
	if _, err := s.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := s.file.Truncate(int64(len(data))); err != nil {
		return fmt.Errorf("failed to truncate queue file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync queue file: %w", err)
	}

	metrics.TicketsQueued.WithLabelValues(s.name).Set(float64(len(tickets)))
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
