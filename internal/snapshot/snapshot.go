// Package snapshot projects aggregator state into the fixed-size summary
// pulled by the presentation layer.
package snapshot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tinytelemetry/throwscope/internal/aggregate"
	"github.com/tinytelemetry/throwscope/internal/model"
	"github.com/tinytelemetry/throwscope/internal/patterns"
)

// defaultPatternRows bounds Snapshot.Patterns when WithPatterns gets no limit.
const defaultPatternRows = 10

// Producer builds snapshots from an Aggregator. It never mutates counters;
// the only maintenance it triggers is the idempotent window trim.
type Producer struct {
	agg       *aggregate.Aggregator
	clock     model.Clock
	miner     *patterns.Miner
	patternsN int
}

// Option configures a Producer.
type Option func(*Producer)

// WithPatterns mines occurrence labels into templates on every snapshot and
// reports the top n of them. The miner is fed outside the aggregator lock.
func WithPatterns(m *patterns.Miner, n int) Option {
	return func(p *Producer) {
		p.miner = m
		p.patternsN = n
	}
}

// New creates a Producer. A nil clock uses the system clock.
func New(agg *aggregate.Aggregator, clock model.Clock, opts ...Option) *Producer {
	if clock == nil {
		clock = model.SystemClock{}
	}
	p := &Producer{agg: agg, clock: clock}
	for _, o := range opts {
		o(p)
	}
	if p.patternsN <= 0 {
		p.patternsN = defaultPatternRows
	}
	return p
}

// Snapshot returns throws per second over window and exactly topN ranked
// entries, padding with placeholders when fewer distinct messages exist.
func (p *Producer) Snapshot(window time.Duration, topN int) model.Snapshot {
	if window <= 0 {
		window = model.DefaultWindow
	}
	if topN < 0 {
		topN = 0
	}
	now := p.clock.Now()
	snap := model.Snapshot{Taken: now, Window: window}

	var occurrences []aggregate.Entry
	p.agg.Read(now, window, func(v aggregate.View) {
		snap.ThrowsPerSecond = float64(v.WindowLen()) / window.Seconds()
		snap.TotalThrows = v.TotalThrows()
		occurrences = v.Occurrences()
		snap.Modules = moduleThrows(v.Modules())
	})
	if p.miner != nil {
		p.miner.Observe(occurrences)
		snap.Patterns = p.miner.Top(p.patternsN)
	}
	snap.TopEntries = topEntries(occurrences, topN)
	return snap
}

func topEntries(entries []aggregate.Entry, topN int) []model.TopEntry {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })

	out := make([]model.TopEntry, topN)
	for i := range out {
		out[i].Rank = i + 1
		if i < len(entries) {
			out[i].Label = entries[i].Label
			out[i].Count = entries[i].Count
			continue
		}
		out[i].Placeholder = true
	}
	return out
}

func moduleThrows(modules []aggregate.ModuleEntry) []model.ModuleThrows {
	out := make([]model.ModuleThrows, 0, len(modules))
	for _, m := range modules {
		mt := model.ModuleThrows{Module: m.Module, Methods: make([]model.MethodThrows, 0, len(m.Methods))}
		for _, e := range m.Methods {
			mt.Total += e.Count
			mt.Methods = append(mt.Methods, model.MethodThrows{Attribution: e.Attribution, Count: e.Count})
		}
		sort.SliceStable(mt.Methods, func(i, j int) bool { return mt.Methods[i].Count > mt.Methods[j].Count })
		out = append(out, mt)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

// Render formats a snapshot as the plain-text summary panel.
func Render(s model.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Throws per second: %g TPS.\n", s.ThrowsPerSecond)
	for _, m := range s.Modules {
		sb.WriteString(m.Module)
		sb.WriteString("\n")
		for _, mt := range m.Methods {
			fmt.Fprintf(&sb, "    %s: %d\n", mt.Attribution.QualifiedName(), mt.Count)
		}
	}
	fmt.Fprintf(&sb, "TOP %d ISSUES\n", len(s.TopEntries))
	for _, e := range s.TopEntries {
		if e.Placeholder {
			fmt.Fprintf(&sb, "%d: \n", e.Rank)
			continue
		}
		fmt.Fprintf(&sb, "%d: %s\n", e.Rank, e.Label)
	}
	return sb.String()
}
