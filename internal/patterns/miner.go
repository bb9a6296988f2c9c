// Package patterns groups occurrence labels into message templates with
// drain3, so messages that differ only in ids, paths or numbers are reported
// together. The occurrence counters themselves are never rewritten.
package patterns

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jaeyo/go-drain3/pkg/drain3"
	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/aggregate"
	"github.com/tinytelemetry/throwscope/internal/model"
)

type labelState struct {
	cluster *drain3.LogCluster
	count   uint64
}

// Miner feeds occurrence labels into a drain3 tree and keeps per-template
// counts. Each distinct label is mined once; later observations only add the
// count delta to its template.
type Miner struct {
	mu     sync.Mutex
	drain  *drain3.Drain
	labels map[string]*labelState
	counts map[*drain3.LogCluster]uint64
	order  []*drain3.LogCluster
	total  uint64
	logger *zap.Logger
}

// New creates an empty Miner.
func New(logger *zap.Logger) (*Miner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d, err := drain3.NewDrain()
	if err != nil {
		return nil, fmt.Errorf("patterns: new drain: %w", err)
	}
	return &Miner{
		drain:  d,
		labels: make(map[string]*labelState),
		counts: make(map[*drain3.LogCluster]uint64),
		logger: logger,
	}, nil
}

// Observe folds the current occurrence counts into the templates. Counts
// never decrease, so a label whose count went down is ignored.
func (m *Miner) Observe(entries []aggregate.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		label := strings.TrimSpace(firstLine(e.Label))
		if label == "" || e.Count == 0 {
			continue
		}
		st, ok := m.labels[e.Label]
		if !ok {
			cluster, _, err := m.drain.AddLogMessage(label)
			if err != nil || cluster == nil {
				m.logger.Debug("patterns: label not mined", zap.String("label", label), zap.Error(err))
				continue
			}
			st = &labelState{cluster: cluster}
			m.labels[e.Label] = st
			if _, seen := m.counts[cluster]; !seen {
				m.order = append(m.order, cluster)
			}
		}
		if e.Count <= st.count {
			continue
		}
		delta := e.Count - st.count
		st.count = e.Count
		m.counts[st.cluster] += delta
		m.total += delta
	}
}

// Top returns up to n templates ordered by count, ties in discovery order.
// A non-positive n returns every template.
func (m *Miner) Top(n int) []model.PatternCount {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.PatternCount, 0, len(m.order))
	for _, c := range m.order {
		count := m.counts[c]
		pc := model.PatternCount{Template: c.GetTemplate(), Count: count}
		if m.total > 0 {
			pc.Percentage = float64(count) * 100 / float64(m.total)
		}
		out = append(out, pc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Stats returns the number of templates and the occurrences they cover.
func (m *Miner) Stats() (templates int, total uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order), m.total
}

// Reset drops every template.
func (m *Miner) Reset() error {
	d, err := drain3.NewDrain()
	if err != nil {
		return fmt.Errorf("patterns: reset: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drain = d
	m.labels = make(map[string]*labelState)
	m.counts = make(map[*drain3.LogCluster]uint64)
	m.order = nil
	m.total = 0
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
