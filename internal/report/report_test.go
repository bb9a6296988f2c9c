package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/throwscope/internal/history"
	"github.com/tinytelemetry/throwscope/internal/model"
)

func sampleSnapshot() model.Snapshot {
	ns := "MuMech"
	return model.Snapshot{
		Window:          10 * time.Second,
		ThrowsPerSecond: 1.5,
		TotalThrows:     15,
		TopEntries: []model.TopEntry{
			{Rank: 1, Label: "NullReferenceException\nat Foo", Count: 12},
			{Rank: 2, Placeholder: true},
		},
		Modules: []model.ModuleThrows{{
			Module: "MechJeb2",
			Total:  15,
			Methods: []model.MethodThrows{{
				Attribution: model.Attribution{Module: "MechJeb2", Namespace: &ns, Class: "MechJebCore", Method: "FixedUpdate", ThirdParty: true},
				Count:       15,
			}},
		}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatTable},
		{"TABLE", FormatTable},
		{" json ", FormatJSON},
		{"md", FormatMarkdown},
		{"text", FormatText},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestSnapshotTable(t *testing.T) {
	out, err := Snapshot(FormatTable, sampleSnapshot())
	require.NoError(t, err)

	assert.Contains(t, out, "Throws per second: 1.5 TPS")
	assert.Contains(t, out, "TOP 2 ISSUES")
	assert.Contains(t, out, "NullReferenceException")
	assert.NotContains(t, out, "at Foo")
	assert.Contains(t, out, "MuMech.MechJebCore.FixedUpdate")
	assert.Contains(t, out, "MechJeb2")
}

func TestSnapshotPatternsTable(t *testing.T) {
	snap := sampleSnapshot()
	snap.Patterns = []model.PatternCount{{Template: "Connection refused from <*>", Count: 9, Percentage: 75}}

	out, err := Snapshot(FormatTable, snap)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "message patterns")
	assert.Contains(t, out, "Connection refused from <*>")
	assert.Contains(t, out, "75.0%")

	out, err = Snapshot(FormatTable, sampleSnapshot())
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(out), "message patterns")
}

func TestSnapshotMarkdown(t *testing.T) {
	out, err := Snapshot(FormatMarkdown, sampleSnapshot())
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "| count |")
	assert.Contains(t, out, "NullReferenceException")
}

func TestSnapshotText(t *testing.T) {
	out, err := Snapshot(FormatText, sampleSnapshot())
	require.NoError(t, err)
	assert.Contains(t, out, "TOP 2 ISSUES\n")
	assert.Contains(t, out, "2: \n")
}

func TestSnapshotJSON(t *testing.T) {
	out, err := Snapshot(FormatJSON, sampleSnapshot())
	require.NoError(t, err)

	var decoded model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, uint64(15), decoded.TotalThrows)
	require.Len(t, decoded.TopEntries, 2)
	assert.True(t, decoded.TopEntries[1].Placeholder)
}

func TestHistoryReport(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := History{
		Records:  42,
		Messages: []history.MessageCount{{Condition: "boom\nline2", Kind: model.RecordUnmatched, Count: 7}},
		Modules:  []history.ModuleCount{{Module: "MechJeb2", ThirdParty: true, Throws: 5, Methods: 2}},
		Runs:     []history.RunSummary{{RunID: "run-1", Started: start, Ended: start.Add(time.Minute), Records: 42, Throws: 5}},
	}

	out, err := HistoryReport(FormatTable, h)
	require.NoError(t, err)
	assert.Contains(t, out, "42 records")
	assert.Contains(t, out, "boom")
	assert.NotContains(t, out, "line2")
	assert.Contains(t, out, "unmatched")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2026-03-01 12:00:00")

	js, err := HistoryReport(FormatJSON, h)
	require.NoError(t, err)
	assert.Contains(t, js, `"records": 42`)
}

func TestHistoryReportEmpty(t *testing.T) {
	out, err := HistoryReport(FormatTable, History{})
	require.NoError(t, err)
	assert.Contains(t, out, "0 records")
	assert.NotContains(t, out, "Runs")
}
