package logsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/model"
)

// followPoll re-checks a followed file when no fsnotify event arrives.
const followPoll = time.Second

// FileSource reads lines from a file. With follow set it keeps reading as
// the file grows, like tail -f, and restarts from the top when truncated.
type FileSource struct {
	path     string
	follow   bool
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewFileSource opens path and starts reading it in a background goroutine.
func NewFileSource(ctx context.Context, path string, follow bool, logger *zap.Logger, conf ...Config) (*FileSource, error) {
	var c Config
	if len(conf) > 0 {
		c = conf[0]
	}
	c = c.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logsource: open %s: %w", path, err)
	}

	var watcher *fsnotify.Watcher
	if follow {
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("logsource: watcher: %w", err)
		}
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			f.Close()
			return nil, fmt.Errorf("logsource: watch %s: %w", path, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &FileSource{
		path:   path,
		follow: follow,
		ch:     make(chan model.IngestEnvelope, c.BufferSize),
		cancel: cancel,
		logger: logger,
	}
	go s.read(ctx, f, watcher, c.MaxLineSize)
	return s, nil
}

func (s *FileSource) read(ctx context.Context, f *os.File, watcher *fsnotify.Watcher, maxLineSize int) {
	defer close(s.ch)
	defer f.Close()
	if watcher != nil {
		defer watcher.Close()
	}

	r := bufio.NewReader(f)
	var (
		partial strings.Builder
		offset  int64
	)

	for {
		chunk, err := r.ReadString('\n')
		offset += int64(len(chunk))
		partial.WriteString(chunk)

		if err == nil {
			if !s.emit(ctx, strings.TrimRight(partial.String(), "\r\n")) {
				return
			}
			partial.Reset()
			continue
		}
		if !errors.Is(err, io.EOF) {
			s.logger.Warn("logsource: read error", zap.String("source", s.path), zap.Error(err))
			return
		}
		if partial.Len() > maxLineSize {
			s.logger.Warn("logsource: line exceeded max size, dropping it",
				zap.String("source", s.path), zap.Int("max_line_size", maxLineSize))
			partial.Reset()
		}

		if !s.follow {
			if partial.Len() > 0 {
				s.emit(ctx, strings.TrimRight(partial.String(), "\r\n"))
			}
			return
		}

		if !s.wait(ctx, watcher) {
			return
		}
		if info, serr := f.Stat(); serr == nil && info.Size() < offset {
			if _, serr := f.Seek(0, io.SeekStart); serr == nil {
				s.logger.Info("logsource: file truncated, reading from start", zap.String("source", s.path))
				r.Reset(f)
				offset = 0
				partial.Reset()
			}
		}
	}
}

// wait blocks until the followed file may have new data. It returns false
// when the source should stop.
func (s *FileSource) wait(ctx context.Context, watcher *fsnotify.Watcher) bool {
	poll := time.NewTimer(followPoll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-poll.C:
			return true
		case ev, ok := <-watcher.Events:
			if !ok {
				return false
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.logger.Info("logsource: followed file went away", zap.String("source", s.path))
				return false
			}
			if ev.Has(fsnotify.Write) {
				return true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return false
			}
			s.logger.Warn("logsource: watcher error", zap.String("source", s.path), zap.Error(err))
		}
	}
}

func (s *FileSource) emit(ctx context.Context, line string) bool {
	select {
	case s.ch <- model.IngestEnvelope{Source: s.path, Line: line}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *FileSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *FileSource) Stop()                              { s.stopOnce.Do(s.cancel) }
func (s *FileSource) Name() string                       { return s.path }
