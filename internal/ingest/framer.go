package ingest

import (
	"strings"
	"time"

	"github.com/tinytelemetry/throwscope/internal/logparse"
	"github.com/tinytelemetry/throwscope/internal/model"
)

// Framer groups raw text lines into events. A severity header opens a record,
// following lines accumulate as its stack trace and a blank line or the next
// header closes it. A non-header line with no open record opens a Log record;
// such a record only absorbs following lines that look like stack frames.
type Framer struct {
	sink  EventSink
	clock model.Clock

	open     bool
	bare     bool // open record has no severity header
	current  model.LogEvent
	stack    strings.Builder
	lastLine time.Time
}

// NewFramer creates a Framer emitting into sink. A nil clock uses the
// system clock.
func NewFramer(sink EventSink, clock model.Clock) *Framer {
	if clock == nil {
		clock = model.SystemClock{}
	}
	return &Framer{sink: sink, clock: clock}
}

// ProcessLine consumes one raw line without its terminator.
func (f *Framer) ProcessLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	f.lastLine = f.clock.Now()

	if strings.TrimSpace(line) == "" {
		f.Flush()
		return
	}

	if sev, condition, ok := logparse.ParseHeader(line); ok {
		f.Flush()
		f.start(sev, condition)
		return
	}

	if f.open && f.bare && !logparse.IsStackFrame(line) {
		f.Flush()
	}
	if !f.open {
		f.start(model.SeverityLog, line)
		f.bare = true
		return
	}
	f.stack.WriteString(strings.TrimSpace(line))
	f.stack.WriteString("\n")
}

func (f *Framer) start(sev model.Severity, condition string) {
	f.open = true
	f.bare = false
	f.current = model.LogEvent{
		Condition: condition,
		Severity:  sev,
		Time:      f.clock.Now(),
	}
	f.stack.Reset()
}

// Flush emits the open record, if any.
func (f *Framer) Flush() {
	if !f.open {
		return
	}
	ev := f.current
	ev.StackTrace = f.stack.String()
	f.open = false
	f.bare = false
	f.current = model.LogEvent{}
	f.stack.Reset()
	if f.sink != nil {
		f.sink.Dispatch(ev)
	}
}

// Pending reports whether a record is open.
func (f *Framer) Pending() bool { return f.open }

// IdleSince returns when the last line was consumed.
func (f *Framer) IdleSince() time.Time { return f.lastLine }
