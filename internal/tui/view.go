package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxModuleRows  = 8
	patternBarSize = 12
)

// View renders the live view.
func (m Model) View() string {
	width := max(m.width, 40)
	inner := width - 4 // border and padding

	sections := []string{
		m.renderHeader(width),
		sectionStyle.Width(width - 2).Render(m.renderChart(inner)),
		sectionStyle.Width(width - 2).Render(m.renderTopIssues(inner)),
	}
	if m.showModules {
		sections = append(sections, sectionStyle.Width(width-2).Render(m.renderModules(inner)))
	}
	if m.showPatterns && len(m.snap.Patterns) > 0 {
		sections = append(sections, sectionStyle.Width(width-2).Render(m.renderPatterns(inner)))
	}
	if m.showHelp {
		m.help.ShowAll = true
	}
	sections = append(sections, m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(width int) string {
	title := "throwscope"
	if m.title != "" {
		title += " · " + m.title
	}
	left := headerStyle.Render(title)
	tps := tpsStyle.Render(fmt.Sprintf("Throws per second: %.1f TPS", m.snap.ThrowsPerSecond))
	total := helpStyle.Render(fmt.Sprintf("total %d · window %s · every %s", m.snap.TotalThrows, m.window, m.interval))

	parts := []string{left, " ", tps, "  ", total}
	if m.paused {
		parts = append(parts, "  ", pausedStyle.Render("PAUSED"))
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}

func (m Model) renderChart(width int) string {
	title := chartTitleStyle.Render("Throws per second")
	if len(m.tpsHistory) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, helpStyle.Render("No data available"))
	}

	chartHeight := 6
	if m.height >= 40 {
		chartHeight = 8
	}
	chartWidth := max(width, 20)
	maxBars := chartWidth / 2

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)

	data := m.tpsHistory
	if len(data) > maxBars {
		data = data[len(data)-maxBars:]
	}
	for i := len(data); i < maxBars; i++ {
		bc.Push(barchart.BarData{
			Values: []barchart.BarValue{{Name: "EMPTY", Value: 0, Style: emptyBarStyle}},
		})
	}
	peak := 0.0
	for _, v := range data {
		peak = max(peak, v)
		bc.Push(barchart.BarData{
			Values: []barchart.BarValue{{Name: "TPS", Value: v, Style: barStyle}},
		})
	}
	bc.Draw()

	stats := helpStyle.Render(fmt.Sprintf("peak %.1f", peak))
	header := lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", stats)
	return lipgloss.JoinVertical(lipgloss.Left, header, bc.View())
}

func (m Model) renderTopIssues(width int) string {
	lines := []string{chartTitleStyle.Render(fmt.Sprintf("TOP %d ISSUES", len(m.snap.TopEntries)))}
	for _, e := range m.snap.TopEntries {
		rank := rankStyle.Render(fmt.Sprintf("%d:", e.Rank))
		if e.Placeholder {
			lines = append(lines, rank)
			continue
		}
		count := countStyle.Render(fmt.Sprintf("%6d", e.Count))
		label := truncate(firstLine(e.Label), width-12)
		lines = append(lines, fmt.Sprintf("%s %s  %s", rank, count, label))
	}
	if len(m.snap.TopEntries) == 0 {
		lines = append(lines, helpStyle.Render("No issues yet"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderModules(width int) string {
	lines := []string{chartTitleStyle.Render("Throws by module")}
	if len(m.snap.Modules) == 0 {
		lines = append(lines, helpStyle.Render("No exceptions attributed"))
		return strings.Join(lines, "\n")
	}

	rows := 0
	for _, mod := range m.snap.Modules {
		if rows >= maxModuleRows {
			lines = append(lines, helpStyle.Render(fmt.Sprintf("… %d more modules", len(m.snap.Modules)-rows)))
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s", mod.Module, countStyle.Render(fmt.Sprintf("(%d)", mod.Total))))
		for _, mt := range mod.Methods {
			name := truncate(mt.Attribution.QualifiedName(), width-14)
			lines = append(lines, fmt.Sprintf("    %s: %d", name, mt.Count))
		}
		rows++
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPatterns(width int) string {
	pats := m.snap.Patterns
	lines := []string{chartTitleStyle.Render(fmt.Sprintf("Message patterns (%d)", len(pats)))}

	var peak uint64
	for _, p := range pats {
		peak = max(peak, p.Count)
	}
	templateWidth := max(width-patternBarSize-10, 20)
	for i, p := range pats {
		fill := 0
		if peak > 0 {
			fill = int(p.Count * patternBarSize / peak)
		}
		if fill == 0 && p.Count > 0 {
			fill = 1
		}
		bar := strings.Repeat("█", fill) + strings.Repeat("░", patternBarSize-fill)
		style := patternTailStyle
		switch {
		case i < 3:
			style = patternHotStyle
		case i < 6:
			style = patternWarmStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s │ %s",
			style.Render(bar),
			helpStyle.Render(fmt.Sprintf("%5.1f%%", p.Percentage)),
			truncate(p.Template, templateWidth),
		))
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
