package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/model"
)

// DefaultIdleFlush is how long a source may stay quiet before its open
// record is emitted.
const DefaultIdleFlush = 250 * time.Millisecond

// Processor frames source-tagged lines into events. Each source has its own
// framer so interleaved sources do not corrupt each other's stack traces.
type Processor struct {
	sink      EventSink
	clock     model.Clock
	logger    *zap.Logger
	idleFlush time.Duration

	framers map[string]*Framer
	lines   uint64
}

// NewProcessor creates a Processor emitting into sink.
func NewProcessor(sink EventSink, clock model.Clock, logger *zap.Logger) *Processor {
	if clock == nil {
		clock = model.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		sink:      sink,
		clock:     clock,
		logger:    logger,
		idleFlush: DefaultIdleFlush,
		framers:   make(map[string]*Framer),
	}
}

// SetIdleFlush changes the quiet period after which open records are
// emitted. Zero disables idle flushing.
func (p *Processor) SetIdleFlush(d time.Duration) { p.idleFlush = d }

// ProcessEnvelope consumes one line from a named source.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) {
	f, ok := p.framers[env.Source]
	if !ok {
		f = NewFramer(p.sink, p.clock)
		p.framers[env.Source] = f
	}
	p.lines++
	f.ProcessLine(env.Line)
}

// FlushAll emits every open record.
func (p *Processor) FlushAll() {
	for _, f := range p.framers {
		f.Flush()
	}
}

// FlushIdle emits open records whose source has been quiet for the idle
// period.
func (p *Processor) FlushIdle() {
	if p.idleFlush <= 0 {
		return
	}
	now := p.clock.Now()
	for _, f := range p.framers {
		if f.Pending() && now.Sub(f.IdleSince()) >= p.idleFlush {
			f.Flush()
		}
	}
}

// Lines returns the number of lines consumed.
func (p *Processor) Lines() uint64 { return p.lines }

// Run consumes envelopes until in is closed or ctx is done, then flushes.
func (p *Processor) Run(ctx context.Context, in <-chan model.IngestEnvelope) error {
	var tick <-chan time.Time
	if p.idleFlush > 0 {
		t := time.NewTicker(p.idleFlush)
		defer t.Stop()
		tick = t.C
	}

	defer func() {
		p.FlushAll()
		p.logger.Debug("ingest: processor stopped", zap.Uint64("lines", p.lines))
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-in:
			if !ok {
				return nil
			}
			p.ProcessEnvelope(env)
		case <-tick:
			p.FlushIdle()
		}
	}
}
