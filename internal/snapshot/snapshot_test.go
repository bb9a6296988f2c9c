package snapshot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/throwscope/internal/aggregate"
	"github.com/tinytelemetry/throwscope/internal/model"
	"github.com/tinytelemetry/throwscope/internal/passfilter"
	"github.com/tinytelemetry/throwscope/internal/patterns"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func emit(a *aggregate.Aggregator, sev model.Severity, condition string) {
	a.Record(model.LogEvent{Condition: condition, Severity: sev}, passfilter.Result{})
}

func TestSnapshotPadsToTopN(t *testing.T) {
	a := aggregate.New(aggregate.Settings{})
	emit(a, model.SeverityException, "alpha")
	emit(a, model.SeverityException, "beta")

	p := New(a, &fakeClock{now: time.Unix(100, 0)})
	snap := p.Snapshot(10*time.Second, 5)

	require.Len(t, snap.TopEntries, 5)
	assert.Equal(t, "alpha", snap.TopEntries[0].Label)
	assert.Equal(t, "beta", snap.TopEntries[1].Label)
	for i, e := range snap.TopEntries[2:] {
		assert.True(t, e.Placeholder, "slot %d", i+3)
		assert.Equal(t, i+3, e.Rank)
		assert.Empty(t, e.Label)
	}
}

func TestSnapshotOrdersByCountThenInsertion(t *testing.T) {
	a := aggregate.New(aggregate.Settings{})
	for _, c := range []string{"first", "second", "third", "second", "third", "fourth"} {
		emit(a, model.SeverityException, c)
	}

	snap := New(a, nil).Snapshot(time.Second, 3)
	labels := []string{snap.TopEntries[0].Label, snap.TopEntries[1].Label, snap.TopEntries[2].Label}
	assert.Equal(t, []string{"second", "third", "first"}, labels)
	assert.Equal(t, uint64(2), snap.TopEntries[0].Count)
}

func TestThrowsPerSecond(t *testing.T) {
	a := aggregate.New(aggregate.Settings{})
	clock := &fakeClock{now: time.Unix(1000, 0)}
	attr := model.Attribution{Module: "MechJeb2", Class: "Core", Method: "Tick", ThirdParty: true}

	for i := 19; i >= 0; i-- {
		a.RecordThrow(attr, clock.now.Add(-time.Duration(i)*time.Second))
	}

	p := New(a, clock)
	snap := p.Snapshot(10*time.Second, 0)
	// throws at -0s..-10s inclusive are within the trailing window
	assert.InDelta(t, 1.1, snap.ThrowsPerSecond, 1e-9)
	assert.Equal(t, uint64(20), snap.TotalThrows)
	assert.Empty(t, snap.TopEntries)

	clock.now = clock.now.Add(time.Hour)
	snap = p.Snapshot(10*time.Second, 0)
	assert.Zero(t, snap.ThrowsPerSecond)
	assert.Equal(t, uint64(20), snap.TotalThrows, "counters survive the trim")
}

func TestSnapshotDoesNotMutateCounters(t *testing.T) {
	a := aggregate.New(aggregate.Settings{})
	emit(a, model.SeverityException, "boom")

	p := New(a, nil)
	p.Snapshot(time.Second, 5)
	p.Snapshot(time.Second, 5)
	assert.Equal(t, uint64(1), a.Occurrences("boom"))
}

func TestModulesSortedByTotal(t *testing.T) {
	a := aggregate.New(aggregate.Settings{})
	now := time.Unix(0, 0)
	small := model.Attribution{Module: "first-party", Class: "PartLoader", Method: "Compile"}
	big := model.Attribution{Module: "MechJeb2", Class: "Core", Method: "Tick", ThirdParty: true}
	bigOther := model.Attribution{Module: "MechJeb2", Class: "Core", Method: "Draw", ThirdParty: true}

	a.RecordThrow(small, now)
	a.RecordThrow(big, now)
	a.RecordThrow(bigOther, now)
	a.RecordThrow(bigOther, now)

	snap := New(a, &fakeClock{now: now}).Snapshot(time.Second, 1)
	require.Len(t, snap.Modules, 2)
	assert.Equal(t, "MechJeb2", snap.Modules[0].Module)
	assert.Equal(t, uint64(3), snap.Modules[0].Total)
	assert.Equal(t, "Draw", snap.Modules[0].Methods[0].Attribution.Method)
}

func TestRender(t *testing.T) {
	ns := "MuMech"
	snap := model.Snapshot{
		ThrowsPerSecond: 0.5,
		Modules: []model.ModuleThrows{{
			Module:  "MechJeb2",
			Total:   5,
			Methods: []model.MethodThrows{{Attribution: model.Attribution{Namespace: &ns, Class: "Core", Method: "Tick"}, Count: 5}},
		}},
		TopEntries: []model.TopEntry{{Rank: 1, Label: "boom", Count: 5}, {Rank: 2, Placeholder: true}},
	}

	out := Render(snap)
	assert.True(t, strings.HasPrefix(out, "Throws per second: 0.5 TPS.\n"))
	assert.Contains(t, out, "MechJeb2\n    MuMech.Core.Tick: 5\n")
	assert.Contains(t, out, "TOP 2 ISSUES\n1: boom\n2: \n")
}

func TestSnapshotWithPatterns(t *testing.T) {
	a := aggregate.New(aggregate.Settings{})
	for _, host := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		emit(a, model.SeverityException, "Connection refused from "+host)
	}
	emit(a, model.SeverityException, "Connection refused from 10.0.0.1")

	miner, err := patterns.New(nil)
	require.NoError(t, err)
	p := New(a, &fakeClock{now: time.Unix(100, 0)}, WithPatterns(miner, 5))

	snap := p.Snapshot(10*time.Second, 5)
	require.NotEmpty(t, snap.Patterns)
	var total uint64
	for _, pc := range snap.Patterns {
		total += pc.Count
	}
	assert.Equal(t, uint64(4), total)
	assert.Equal(t, "Connection refused from 10.0.0.1", snap.TopEntries[0].Label, "occurrence labels stay verbatim")
	assert.Equal(t, uint64(2), snap.TopEntries[0].Count)

	emit(a, model.SeverityException, "Connection refused from 10.0.0.2")
	snap = p.Snapshot(10*time.Second, 5)
	total = 0
	for _, pc := range snap.Patterns {
		total += pc.Count
	}
	assert.Equal(t, uint64(5), total, "repeated snapshots only add new occurrences")
}

func TestSnapshotWithoutPatterns(t *testing.T) {
	a := aggregate.New(aggregate.Settings{})
	emit(a, model.SeverityException, "alpha")

	snap := New(a, nil).Snapshot(10*time.Second, 1)
	assert.Empty(t, snap.Patterns)
}
