package logsource

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/throwscope/internal/model"
)

// Multiplexer fans several sources into one stream for the framer. Lines of
// one source keep their relative order; lines of different sources
// interleave in arrival order.
type Multiplexer struct {
	sources []LogSource
	lines   chan model.IngestEnvelope
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	forwarded atomic.Uint64
	started   atomic.Bool
	drained   chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

// NewMultiplexer creates a Multiplexer over sources. Call Start to begin
// forwarding.
func NewMultiplexer(parent context.Context, sources []LogSource, buffer int, logger *zap.Logger) *Multiplexer {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Multiplexer{
		sources: sources,
		lines:   make(chan model.IngestEnvelope, buffer),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		drained: make(chan struct{}),
	}
}

// Start begins forwarding. The output closes once every source is drained.
func (m *Multiplexer) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	if len(m.sources) == 0 {
		m.closeOutput()
		close(m.drained)
		return
	}

	g, gctx := errgroup.WithContext(m.ctx)
	for _, src := range m.sources {
		g.Go(func() error {
			m.forward(gctx, src)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		m.closeOutput()
		close(m.drained)
	}()
}

// Stop stops every source and closes the output. Lines not yet read from
// Lines are discarded.
func (m *Multiplexer) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		for _, src := range m.sources {
			src.Stop()
		}
		if m.started.Load() {
			<-m.drained
		}
		m.closeOutput()
	})
}

// Len returns the number of sources.
func (m *Multiplexer) Len() int { return len(m.sources) }

// Forwarded returns the number of lines passed to the output so far.
func (m *Multiplexer) Forwarded() uint64 { return m.forwarded.Load() }

// Lines returns the merged stream.
func (m *Multiplexer) Lines() <-chan model.IngestEnvelope { return m.lines }

func (m *Multiplexer) forward(ctx context.Context, src LogSource) {
	var n uint64
	defer func() {
		m.logger.Debug("logsource: source drained", zap.String("source", src.Name()), zap.Uint64("lines", n))
	}()

	in := src.Lines()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-in:
			if !ok {
				return
			}
			if env.Source == "" {
				env.Source = src.Name()
			}
			select {
			case m.lines <- env:
				n++
				m.forwarded.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}
}

func (m *Multiplexer) closeOutput() {
	m.closeOnce.Do(func() { close(m.lines) })
}
