package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/throwscope/internal/model"
)

type fakeSource struct {
	calls int
	snap  model.Snapshot
}

func (s *fakeSource) Snapshot(window time.Duration, topN int) model.Snapshot {
	s.calls++
	out := s.snap
	out.Window = window
	return out
}

func fixtureSnapshot() model.Snapshot {
	ns := "MuMech"
	return model.Snapshot{
		ThrowsPerSecond: 2.5,
		TotalThrows:     42,
		TopEntries: []model.TopEntry{
			{Rank: 1, Label: "NullReferenceException: boom", Count: 30},
			{Rank: 2, Label: "loading part X--> bad node", Count: 12},
			{Rank: 3, Placeholder: true},
		},
		Modules: []model.ModuleThrows{{
			Module: "MechJeb2",
			Total:  30,
			Methods: []model.MethodThrows{{
				Attribution: model.Attribution{Module: "MechJeb2", Namespace: &ns, Class: "Core", Method: "Tick", ThirdParty: true},
				Count:       30,
			}},
		}},
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func keyMsg(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTickPullsSnapshot(t *testing.T) {
	src := &fakeSource{snap: fixtureSnapshot()}
	m := New(src, Options{TopN: 3, Window: 10 * time.Second})

	require.NotNil(t, m.Init())

	m, cmd := update(t, m, TickMsg(time.Now()))
	assert.NotNil(t, cmd, "tick reschedules itself")
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 10*time.Second, m.Snapshot().Window)
	assert.Len(t, m.tpsHistory, 1)
}

func TestPauseStopsPulling(t *testing.T) {
	src := &fakeSource{snap: fixtureSnapshot()}
	m := New(src, Options{})

	m, _ = update(t, m, keyMsg(" "))
	assert.True(t, m.Paused())

	m, cmd := update(t, m, TickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Zero(t, src.calls)

	m, _ = update(t, m, keyMsg(" "))
	assert.False(t, m.Paused())
}

func TestQuitKeys(t *testing.T) {
	m := New(&fakeSource{}, Options{})

	_, cmd := update(t, m, keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestIntervalKeysAreClamped(t *testing.T) {
	m := New(&fakeSource{}, Options{RefreshInterval: 200 * time.Millisecond})

	for i := 0; i < 10; i++ {
		m, _ = update(t, m, keyMsg("+"))
	}
	assert.Equal(t, maxRefreshInterval, m.Interval())

	for i := 0; i < 20; i++ {
		m, _ = update(t, m, keyMsg("-"))
	}
	assert.Equal(t, minRefreshInterval, m.Interval())
}

func TestTPSHistoryIsBounded(t *testing.T) {
	src := &fakeSource{snap: fixtureSnapshot()}
	m := New(src, Options{})
	for i := 0; i < tpsHistoryLen+30; i++ {
		m, _ = update(t, m, TickMsg(time.Now()))
	}
	assert.Len(t, m.tpsHistory, tpsHistoryLen)
}

func TestViewRendersPanels(t *testing.T) {
	src := &fakeSource{snap: fixtureSnapshot()}
	m := New(src, Options{TopN: 3, Title: "Player.log"})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, TickMsg(time.Now()))

	out := m.View()
	assert.Contains(t, out, "Throws per second: 2.5 TPS")
	assert.Contains(t, out, "TOP 3 ISSUES")
	assert.Contains(t, out, "NullReferenceException: boom")
	assert.Contains(t, out, "3:")
	assert.Contains(t, out, "MechJeb2")
	assert.Contains(t, out, "MuMech.Core.Tick: 30")
	assert.Contains(t, out, "Player.log")

	m, _ = update(t, m, keyMsg("m"))
	assert.NotContains(t, m.View(), "Throws by module")
}

func TestViewBeforeFirstTick(t *testing.T) {
	m := New(nil, Options{})
	m, _ = update(t, m, TickMsg(time.Now()))
	out := m.View()
	assert.Contains(t, out, "No data available")
	assert.True(t, strings.Contains(out, "TOP 0 ISSUES"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "", truncate("abc", 1))
	assert.Equal(t, "first", firstLine("first\nsecond"))
}

func TestPatternsPanelToggle(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Patterns = []model.PatternCount{
		{Template: "Connection refused from <*>", Count: 9, Percentage: 75},
		{Template: "texture missing", Count: 3, Percentage: 25},
	}
	src := &fakeSource{snap: snap}
	m := New(src, Options{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, TickMsg(time.Now()))

	out := m.View()
	assert.Contains(t, out, "Message patterns (2)")
	assert.Contains(t, out, "Connection refused from <*>")
	assert.Contains(t, out, " 75.0%")

	m, _ = update(t, m, keyMsg("p"))
	assert.NotContains(t, m.View(), "Message patterns")
}

func TestPatternsPanelHiddenWithoutPatterns(t *testing.T) {
	src := &fakeSource{snap: fixtureSnapshot()}
	m := New(src, Options{})
	m, _ = update(t, m, TickMsg(time.Now()))
	assert.NotContains(t, m.View(), "Message patterns")
}
