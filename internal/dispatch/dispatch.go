// Package dispatch is the single entry point for host log events. It threads
// each event through classification, aggregation, blame and the audit sink.
package dispatch

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/aggregate"
	"github.com/tinytelemetry/throwscope/internal/model"
	"github.com/tinytelemetry/throwscope/internal/passfilter"
	"github.com/tinytelemetry/throwscope/internal/resolver"
)

// Stats counts events the dispatcher handled outside the normal flow.
type Stats struct {
	Dispatched uint64
	Reentrant  uint64
	Faults     uint64
}

// Dispatcher routes log events through the pipeline in arrival order.
type Dispatcher struct {
	agg      *aggregate.Aggregator
	resolver *resolver.Resolver
	sink     model.AuditSink
	clock    model.Clock
	logger   *zap.Logger

	filter   atomic.Pointer[passfilter.Filter]
	handling atomic.Bool

	dispatched atomic.Uint64
	reentrant  atomic.Uint64
	faults     atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the clock used to timestamp throws.
func WithClock(c model.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithLogger sets the process logger that receives dropped and faulted events.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

type discard struct{}

func (discard) Write(model.AuditRecord) {}

// New creates a Dispatcher. A nil filter matches nothing and a nil sink
// discards records.
func New(filter *passfilter.Filter, agg *aggregate.Aggregator, res *resolver.Resolver, sink model.AuditSink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		agg:      agg,
		resolver: res,
		sink:     sink,
		clock:    model.SystemClock{},
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.sink == nil {
		d.sink = discard{}
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if filter == nil {
		filter = passfilter.New(nil, nil)
	}
	d.filter.Store(filter)
	return d
}

// OnLogEvent is the host callback form of Dispatch.
func (d *Dispatcher) OnLogEvent(condition, stackTrace string, severity model.Severity) {
	d.Dispatch(model.LogEvent{Condition: condition, StackTrace: stackTrace, Severity: severity})
}

// Dispatch processes one event. It never panics and never returns an error;
// events raised while another is being handled are logged and dropped.
func (d *Dispatcher) Dispatch(ev model.LogEvent) {
	if !d.handling.CompareAndSwap(false, true) {
		d.reentrant.Add(1)
		d.logger.Debug("dispatch: nested log event dropped",
			zap.Stringer("severity", ev.Severity),
			zap.String("condition", ev.Condition))
		return
	}
	defer d.handling.Store(false)
	defer func() {
		if r := recover(); r != nil {
			d.fault(ev, r)
		}
	}()

	if ev.Time.IsZero() {
		ev.Time = d.clock.Now()
	}
	d.dispatched.Add(1)

	out := d.agg.Record(ev, d.filter.Load().Classify(ev.Condition))
	if out.Exception {
		attr := d.resolver.Blame(ev.StackTrace)
		d.agg.RecordThrow(attr, d.clock.Now())
		for i := range out.Records {
			if out.Records[i].Kind == model.RecordException {
				a := attr
				out.Records[i].Attribution = &a
			}
		}
	}

	for _, rec := range out.Records {
		d.sink.Write(rec)
	}
}

func (d *Dispatcher) fault(ev model.LogEvent, r any) {
	d.faults.Add(1)
	msg := fmt.Sprintf("dispatch fault: %v", r)
	d.logger.Error("dispatch: recovered fault",
		zap.Any("panic", r),
		zap.Stringer("severity", ev.Severity),
		zap.String("condition", ev.Condition))

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch: fault record dropped", zap.Any("panic", r))
		}
	}()
	d.sink.Write(model.AuditRecord{
		Time:      d.clock.Now(),
		Kind:      model.RecordFault,
		Severity:  ev.Severity,
		Condition: msg,
	})
}

// Reload swaps the rule sets and aggregator settings. Counters, the throw
// window and the resolver cache are kept.
func (d *Dispatcher) Reload(filter *passfilter.Filter, settings aggregate.Settings) {
	if filter == nil {
		filter = passfilter.New(nil, nil)
	}
	d.filter.Store(filter)
	d.agg.SetSettings(settings)
	d.logger.Info("dispatch: rules reloaded",
		zap.Int("double_pass", filter.Double().Len()),
		zap.Int("single_pass", filter.Single().Len()))
}

// Filter returns the active rule sets.
func (d *Dispatcher) Filter() *passfilter.Filter { return d.filter.Load() }

// Stats returns the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched: d.dispatched.Load(),
		Reentrant:  d.reentrant.Load(),
		Faults:     d.faults.Load(),
	}
}
