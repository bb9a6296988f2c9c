// Package aggregate holds the stateful core of the engine: message
// occurrence counts, per-attribution throw counts, the trailing throw
// window and the one-slot pending context that pairs a known-noise line
// with the warning or error that follows it.
//
// All state is guarded by a single mutex held for the whole of each call,
// because the producer goroutine and the snapshot consumer run concurrently.
package aggregate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/throwscope/internal/model"
	"github.com/tinytelemetry/throwscope/internal/passfilter"
)

// UnknownCondition replaces an empty condition when counting.
const UnknownCondition = "UNKNOWN ERROR"

// CompositeSeparator joins a pending context with the line that consumed it.
const CompositeSeparator = "--> "

// Settings controls emission. Counting happens regardless of what is displayed.
type Settings struct {
	ShowFullLog       bool
	HideKnownNoise    bool
	ShowInfoMessages  bool
	ContentRoot       string
	RootFolderName    string
	SuppressThreshold int
}

// Stats are engine-wide tallies.
type Stats struct {
	Events     uint64
	Emitted    uint64
	Dropped    uint64
	Suppressed uint64
	Throws     uint64
}

// Outcome is what Record produced for one event.
type Outcome struct {
	Records []model.AuditRecord
	// Exception is set when the event needs stack attribution.
	Exception bool
	// Suppressed is set when an exception's trace was replaced by a repeat counter.
	Suppressed bool
}

type pendingContext struct {
	preStack string
}

// Aggregator is the stateful event core.
type Aggregator struct {
	mu sync.Mutex

	settings    Settings
	occurrences *OccurrenceCounter
	throws      *ThrowCounter
	window      ThrowWindow
	pending     *pendingContext
	prevUnmatch string
	stats       Stats
}

// New creates an empty Aggregator.
func New(settings Settings) *Aggregator {
	return &Aggregator{
		settings:    withDefaults(settings),
		occurrences: newOccurrenceCounter(),
		throws:      newThrowCounter(),
	}
}

func withDefaults(s Settings) Settings {
	if s.SuppressThreshold <= 0 {
		s.SuppressThreshold = model.DefaultSuppressThreshold
	}
	if s.RootFolderName == "" {
		s.RootFolderName = model.DefaultRootFolderName
	}
	return s
}

// SetSettings replaces the emission settings. Counters are kept.
func (a *Aggregator) SetSettings(s Settings) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = withDefaults(s)
}

// Settings returns the current settings.
func (a *Aggregator) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// Normalize strips host-specific path fragments from a condition so counts
// are comparable across installations.
func (a *Aggregator) Normalize(condition string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.normalize(condition)
}

func (a *Aggregator) normalize(condition string) string {
	if condition == "" {
		return UnknownCondition
	}
	out := condition
	if a.settings.ContentRoot != "" {
		out = strings.ReplaceAll(out, a.settings.ContentRoot, "")
	}
	if a.settings.RootFolderName != "" {
		out = strings.ReplaceAll(out, a.settings.RootFolderName, "")
	}
	return out
}

// Record applies one event to the state and returns the records it emits.
func (a *Aggregator) Record(ev model.LogEvent, cls passfilter.Result) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Events++

	var out Outcome
	switch {
	case ev.Severity == model.SeverityException:
		out = a.recordException(ev, cls)
	case cls.MatchesDouble:
		out = a.recordKnownNoise(ev, cls)
	case ev.Severity == model.SeverityLog:
		out = a.recordInfo(ev)
	default:
		out = a.recordWarning(ev, cls)
	}

	if len(out.Records) == 0 {
		a.stats.Dropped++
	}
	a.stats.Emitted += uint64(len(out.Records))
	return out
}

func (a *Aggregator) recordKnownNoise(ev model.LogEvent, cls passfilter.Result) Outcome {
	a.pending = &pendingContext{preStack: ev.Condition}
	a.occurrences.Inc(a.normalize(ev.Condition))
	if a.settings.HideKnownNoise {
		return Outcome{}
	}
	return Outcome{Records: []model.AuditRecord{a.newRecord(ev, model.RecordKnownNoise, ev.Condition, cls.Rule, a.stackIfFull(ev))}}
}

func (a *Aggregator) recordInfo(ev model.LogEvent) Outcome {
	if !a.settings.ShowInfoMessages || a.pending != nil {
		return Outcome{}
	}
	return Outcome{Records: []model.AuditRecord{a.newRecord(ev, model.RecordInfo, ev.Condition, "", a.stackIfFull(ev))}}
}

func (a *Aggregator) recordWarning(ev model.LogEvent, cls passfilter.Result) Outcome {
	switch {
	case a.pending != nil:
		composite := a.pending.preStack + CompositeSeparator + a.normalize(ev.Condition)
		a.occurrences.Inc(composite)
		a.pending = nil
		a.prevUnmatch = ev.Condition
		return Outcome{Records: []model.AuditRecord{a.newRecord(ev, model.RecordCorrelated, composite, "", "")}}

	case cls.MatchesSingle:
		a.occurrences.Inc(a.normalize(ev.Condition))
		return Outcome{Records: []model.AuditRecord{a.newRecord(ev, model.RecordSinglePass, ev.Condition, cls.Rule, "")}}

	case ev.Condition != a.prevUnmatch:
		a.prevUnmatch = ev.Condition
		a.occurrences.Inc(a.normalize(ev.Condition))
		return Outcome{Records: []model.AuditRecord{a.newRecord(ev, model.RecordUnmatched, ev.Condition, "", ev.StackTrace)}}

	default:
		return Outcome{}
	}
}

func (a *Aggregator) recordException(ev model.LogEvent, cls passfilter.Result) Outcome {
	if cls.MatchesDouble {
		a.pending = &pendingContext{preStack: ev.Condition}
	} else {
		a.pending = nil
	}

	norm := a.normalize(ev.Condition)
	payload := ev.StackTrace
	suppressed := false
	// An empty condition always keeps its full trace.
	if ev.Condition != "" && a.occurrences.Get(norm) > uint64(a.settings.SuppressThreshold) {
		n := a.occurrences.Inc(norm)
		payload = fmt.Sprintf("Exception has been called %d times", n)
		suppressed = true
		a.stats.Suppressed++
	} else {
		a.occurrences.Inc(norm)
	}

	rec := a.newRecord(ev, model.RecordException, ev.Condition, cls.Rule, payload)
	return Outcome{Records: []model.AuditRecord{rec}, Exception: true, Suppressed: suppressed}
}

func (a *Aggregator) stackIfFull(ev model.LogEvent) string {
	if a.settings.ShowFullLog {
		return ev.StackTrace
	}
	return ""
}

func (a *Aggregator) newRecord(ev model.LogEvent, kind model.RecordKind, condition, label, stack string) model.AuditRecord {
	return model.AuditRecord{
		Time:       ev.Time,
		Kind:       kind,
		Severity:   ev.Severity,
		Condition:  condition,
		StackTrace: stack,
		Label:      label,
	}
}

// RecordThrow counts one attributed exception at time at.
func (a *Aggregator) RecordThrow(attr model.Attribution, at time.Time) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window.Push(at)
	a.stats.Throws++
	return a.throws.Inc(attr)
}

// HasPending reports whether a pending context is waiting for its pair.
func (a *Aggregator) HasPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Occurrences returns the count of a normalized message.
func (a *Aggregator) Occurrences(message string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.occurrences.Get(message)
}

// Throws returns the throw count recorded for attr.
func (a *Aggregator) Throws(attr model.Attribution) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.throws.Get(attr)
}

// Stats returns a copy of the tallies.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// View is a read-only window onto the state, valid only inside Read.
type View struct {
	a *Aggregator
}

// Occurrences returns message counts in insertion order.
func (v View) Occurrences() []Entry { return v.a.occurrences.Entries() }

// Modules returns throw counts grouped by module, in insertion order.
func (v View) Modules() []ModuleEntry { return v.a.throws.Modules() }

// WindowLen returns the number of throws retained in the window.
func (v View) WindowLen() int { return v.a.window.Len() }

// TotalThrows returns the number of throws ever counted.
func (v View) TotalThrows() uint64 { return v.a.throws.Total() }

// Read trims the throw window to [now-window, now] and hands fn a
// consistent view. Trimming is the only mutation it performs.
func (a *Aggregator) Read(now time.Time, window time.Duration, fn func(View)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window.Trim(now.Add(-window))
	fn(View{a: a})
}
