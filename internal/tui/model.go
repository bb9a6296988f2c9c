// Package tui renders the live throwscope view. It pulls a snapshot on every
// tick and never touches the pipeline otherwise.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/throwscope/internal/model"
)

const (
	tpsHistoryLen      = 120
	minRefreshInterval = 50 * time.Millisecond
	maxRefreshInterval = 5 * time.Second
)

// TickMsg represents a periodic snapshot pull.
type TickMsg time.Time

// Options configures the live view.
type Options struct {
	Window          time.Duration
	TopN            int
	RefreshInterval time.Duration
	// Title is shown in the header, e.g. the input being watched.
	Title string
}

// Model is the bubbletea model of the live view.
type Model struct {
	source   model.SnapshotSource
	window   time.Duration
	topN     int
	interval time.Duration
	title    string

	keys KeyMap
	help help.Model

	width  int
	height int

	snap         model.Snapshot
	tpsHistory   []float64
	paused       bool
	showHelp     bool
	showModules  bool
	showPatterns bool
}

// New creates a live view pulling from source.
func New(source model.SnapshotSource, opts Options) Model {
	if opts.Window <= 0 {
		opts.Window = model.DefaultWindow
	}
	if opts.TopN < 0 {
		opts.TopN = model.DefaultTopN
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = model.DefaultRefreshInterval
	}
	return Model{
		source:       source,
		window:       opts.Window,
		topN:         opts.TopN,
		interval:     opts.RefreshInterval,
		title:        opts.Title,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		width:        80,
		height:       24,
		showModules:  true,
		showPatterns: true,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, resizes and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case TickMsg:
		if !m.paused {
			m.pull()
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
		case key.Matches(msg, m.keys.ToggleModules):
			m.showModules = !m.showModules
		case key.Matches(msg, m.keys.TogglePatterns):
			m.showPatterns = !m.showPatterns
		case key.Matches(msg, m.keys.IntervalUp):
			m.interval = min(m.interval*2, maxRefreshInterval)
		case key.Matches(msg, m.keys.IntervalDown):
			m.interval = max(m.interval/2, minRefreshInterval)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) pull() {
	if m.source == nil {
		return
	}
	m.snap = m.source.Snapshot(m.window, m.topN)
	m.tpsHistory = append(m.tpsHistory, m.snap.ThrowsPerSecond)
	if len(m.tpsHistory) > tpsHistoryLen {
		m.tpsHistory = m.tpsHistory[len(m.tpsHistory)-tpsHistoryLen:]
	}
}

// Snapshot returns the last pulled snapshot.
func (m Model) Snapshot() model.Snapshot { return m.snap }

// Paused reports whether refreshes are paused.
func (m Model) Paused() bool { return m.paused }

// Interval returns the current refresh interval.
func (m Model) Interval() time.Duration { return m.interval }

// Run runs the live view full-screen until the user quits or ctx is done.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
