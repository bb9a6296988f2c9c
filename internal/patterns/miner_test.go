package patterns

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/throwscope/internal/aggregate"
)

func newMiner(t *testing.T) *Miner {
	t.Helper()
	m, err := New(nil)
	require.NoError(t, err)
	return m
}

func TestObserveMergesSimilarLabels(t *testing.T) {
	m := newMiner(t)
	m.Observe([]aggregate.Entry{
		{Label: "Connection refused from 192.168.1.1", Count: 2},
		{Label: "Connection refused from 10.0.0.1", Count: 1},
		{Label: "Connection refused from 172.16.0.1", Count: 4},
	})

	top := m.Top(10)
	require.NotEmpty(t, top)
	assert.Less(t, len(top), 3, "similar labels share a template")

	_, total := m.Stats()
	assert.Equal(t, uint64(7), total)
}

func TestObserveAddsOnlyDeltas(t *testing.T) {
	m := newMiner(t)
	m.Observe([]aggregate.Entry{{Label: "texture missing", Count: 3}})
	m.Observe([]aggregate.Entry{{Label: "texture missing", Count: 5}})
	m.Observe([]aggregate.Entry{{Label: "texture missing", Count: 5}})

	top := m.Top(0)
	require.Len(t, top, 1)
	assert.Equal(t, uint64(5), top[0].Count)
	assert.InDelta(t, 100.0, top[0].Percentage, 1e-9)
}

func TestObserveSkipsEmptyLabels(t *testing.T) {
	m := newMiner(t)
	m.Observe([]aggregate.Entry{
		{Label: "", Count: 4},
		{Label: "   ", Count: 2},
		{Label: "never counted", Count: 0},
	})

	templates, total := m.Stats()
	assert.Zero(t, templates)
	assert.Zero(t, total)
}

func TestTopSortedAndLimited(t *testing.T) {
	m := newMiner(t)
	var entries []aggregate.Entry
	for i := range 20 {
		entries = append(entries, aggregate.Entry{
			Label: fmt.Sprintf("distinct%c message shape %d", 'A'+i, i),
			Count: uint64(i + 1),
		})
	}
	entries = append(entries, aggregate.Entry{Label: "frequent pattern message here", Count: 100})
	m.Observe(entries)

	top := m.Top(3)
	require.LessOrEqual(t, len(top), 3)
	require.NotEmpty(t, top)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Count, top[i].Count)
	}
	assert.GreaterOrEqual(t, top[0].Count, uint64(100))
}

func TestPercentagesSumToHundred(t *testing.T) {
	m := newMiner(t)
	m.Observe([]aggregate.Entry{
		{Label: "test message", Count: 6},
		{Label: "something else entirely different", Count: 4},
	})

	sum := 0.0
	for _, p := range m.Top(0) {
		sum += p.Percentage
	}
	assert.InDelta(t, 100.0, sum, 0.01)
}

func TestMultilineLabelUsesFirstLine(t *testing.T) {
	m := newMiner(t)
	m.Observe([]aggregate.Entry{{Label: "loading part X--> NullReference\nsecond line", Count: 1}})

	top := m.Top(1)
	require.Len(t, top, 1)
	assert.NotContains(t, top[0].Template, "second line")
}

func TestReset(t *testing.T) {
	m := newMiner(t)
	m.Observe([]aggregate.Entry{{Label: "test message", Count: 2}})
	require.NoError(t, m.Reset())

	assert.Empty(t, m.Top(10))
	_, total := m.Stats()
	assert.Zero(t, total)

	m.Observe([]aggregate.Entry{{Label: "test message", Count: 2}})
	_, total = m.Stats()
	assert.Equal(t, uint64(2), total, "labels are mined again after a reset")
}
