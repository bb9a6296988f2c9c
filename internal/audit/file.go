// Package audit persists emitted records to the append-only audit file.
package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/model"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// FileSink appends records to a text file. Every Write opens the file,
// appends, syncs and closes it again; no handle is held between writes.
type FileSink struct {
	mu      sync.Mutex
	path    string
	runID   string
	logger  *zap.Logger
	now     func() time.Time
	dropped atomic.Uint64
}

// NewFileSink creates a sink for path. The file is not touched until Init or
// the first Write.
func NewFileSink(path string, logger *zap.Logger) (*FileSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("audit: path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{
		path:   path,
		runID:  uuid.NewString(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Path returns the audit file path.
func (s *FileSink) Path() string { return s.path }

// RunID returns the identifier written into the header.
func (s *FileSink) RunID() string { return s.runID }

// Dropped returns the number of records that could not be written at all.
func (s *FileSink) Dropped() uint64 { return s.dropped.Load() }

// Init truncates the audit file and writes the run header.
func (s *FileSink) Init(contentRoot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), defaultDirMode); err != nil {
		return fmt.Errorf("audit: mkdir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("audit: create: %w", err)
	}

	header := fmt.Sprintf("%s\n%s\nRun:\t%s\n\n\n",
		s.now().Format(time.RFC3339), contentRoot, s.runID)
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return fmt.Errorf("audit: write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("audit: sync header: %w", err)
	}
	return f.Close()
}

// Write appends rec. A failed write is reported as a fault line in the same
// file when possible and dropped otherwise.
func (s *FileSink) Write(rec model.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.appendText(Format(rec))
	if err == nil {
		return
	}
	s.logger.Warn("audit: write failed", zap.String("path", s.path), zap.Error(err))

	fault := Format(model.AuditRecord{Kind: model.RecordFault, Condition: err.Error()})
	if ferr := s.appendText(fault); ferr != nil {
		s.dropped.Add(1)
		s.logger.Error("audit: record dropped",
			zap.String("path", s.path),
			zap.String("kind", string(rec.Kind)),
			zap.Error(ferr))
	}
}

func (s *FileSink) appendText(text string) error {
	if text == "" {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("audit: open: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("audit: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("audit: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audit: close: %w", err)
	}
	return nil
}
