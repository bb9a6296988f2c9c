package logsource

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/model"
)

// ReaderSource reads newline-delimited text from an io.Reader. Blank lines
// are kept since they delimit records.
type ReaderSource struct {
	name     string
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewStdinSource creates a source reading from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, logger *zap.Logger, conf ...Config) *ReaderSource {
	return NewReaderSource(ctx, "stdin", os.Stdin, logger, conf...)
}

// NewReaderSource creates a source named name reading from r.
func NewReaderSource(ctx context.Context, name string, r io.Reader, logger *zap.Logger, conf ...Config) *ReaderSource {
	var c Config
	if len(conf) > 0 {
		c = conf[0]
	}
	c = c.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &ReaderSource{
		name:   name,
		ch:     make(chan model.IngestEnvelope, c.BufferSize),
		cancel: cancel,
		logger: logger,
	}
	go s.read(ctx, r, c.MaxLineSize)
	return s
}

func (s *ReaderSource) read(ctx context.Context, r io.Reader, maxLineSize int) {
	defer close(s.ch)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	// One goroutine owns the blocking scan; the outer loop watches ctx.
	results := make(chan string)
	go func() {
		defer close(results)
		for scanner.Scan() {
			select {
			case results <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				s.logger.Warn("logsource: line exceeded max size, stopping source",
					zap.String("source", s.name), zap.Int("max_line_size", maxLineSize))
				return
			}
			s.logger.Warn("logsource: scanner error", zap.String("source", s.name), zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-results:
			if !ok {
				return
			}
			select {
			case s.ch <- model.IngestEnvelope{Source: s.name, Line: line}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *ReaderSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *ReaderSource) Stop()                              { s.stopOnce.Do(s.cancel) }
func (s *ReaderSource) Name() string                       { return s.name }
