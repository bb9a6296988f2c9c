// Package report renders snapshots and history query results for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tinytelemetry/throwscope/internal/history"
	"github.com/tinytelemetry/throwscope/internal/model"
	"github.com/tinytelemetry/throwscope/internal/snapshot"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	switch normalized := strings.ToLower(strings.TrimSpace(value)); normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatText):
		return FormatText, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("report: unsupported output format: %s", value)
	}
}

func render(t table.Writer, format Format) string {
	if format == FormatMarkdown {
		return t.RenderMarkdown()
	}
	t.SetStyle(table.StyleRounded)
	return t.Render()
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal: %w", err)
	}
	return string(data), nil
}

// Snapshot renders a snapshot in the requested format.
func Snapshot(format Format, snap model.Snapshot) (string, error) {
	switch format {
	case FormatJSON:
		return toJSON(snap)
	case FormatText:
		return snapshot.Render(snap), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Throws per second: %g TPS (%d total over %s window)\n\n",
		snap.ThrowsPerSecond, snap.TotalThrows, snap.Window)

	issues := table.NewWriter()
	issues.SetTitle(fmt.Sprintf("TOP %d ISSUES", len(snap.TopEntries)))
	issues.AppendHeader(table.Row{"#", "Count", "Message"})
	for _, e := range snap.TopEntries {
		if e.Placeholder {
			issues.AppendRow(table.Row{e.Rank, "", ""})
			continue
		}
		issues.AppendRow(table.Row{e.Rank, e.Count, firstLine(e.Label)})
	}
	sb.WriteString(render(issues, format))

	if len(snap.Modules) > 0 {
		mods := table.NewWriter()
		mods.SetTitle("Throws by module")
		mods.AppendHeader(table.Row{"Module", "Method", "Throws"})
		for _, m := range snap.Modules {
			for i, mt := range m.Methods {
				name := ""
				if i == 0 {
					name = m.Module
				}
				mods.AppendRow(table.Row{name, mt.Attribution.QualifiedName(), mt.Count})
			}
		}
		sb.WriteString("\n\n")
		sb.WriteString(render(mods, format))
	}

	if len(snap.Patterns) > 0 {
		pats := table.NewWriter()
		pats.SetTitle("Message patterns")
		pats.AppendHeader(table.Row{"Count", "Share", "Template"})
		for _, p := range snap.Patterns {
			pats.AppendRow(table.Row{p.Count, fmt.Sprintf("%.1f%%", p.Percentage), p.Template})
		}
		sb.WriteString("\n\n")
		sb.WriteString(render(pats, format))
	}
	return sb.String(), nil
}

// History is the data shown by the history command.
type History struct {
	Records  int64                  `json:"records"`
	Messages []history.MessageCount `json:"messages"`
	Modules  []history.ModuleCount  `json:"modules"`
	Runs     []history.RunSummary   `json:"runs"`
}

// HistoryReport renders history query results in the requested format.
func HistoryReport(format Format, h History) (string, error) {
	if format == FormatJSON {
		return toJSON(h)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d records\n\n", h.Records)

	msgs := table.NewWriter()
	msgs.SetTitle("Top messages")
	msgs.AppendHeader(table.Row{"Count", "Kind", "Message"})
	for _, m := range h.Messages {
		msgs.AppendRow(table.Row{m.Count, string(m.Kind), firstLine(m.Condition)})
	}
	sb.WriteString(render(msgs, format))

	mods := table.NewWriter()
	mods.SetTitle("Top modules")
	mods.AppendHeader(table.Row{"Module", "Third party", "Throws", "Methods"})
	for _, m := range h.Modules {
		mods.AppendRow(table.Row{m.Module, yesNo(m.ThirdParty), m.Throws, m.Methods})
	}
	sb.WriteString("\n\n")
	sb.WriteString(render(mods, format))

	if len(h.Runs) > 0 {
		runs := table.NewWriter()
		runs.SetTitle("Runs")
		runs.AppendHeader(table.Row{"Run", "Started", "Ended", "Records", "Throws"})
		for _, r := range h.Runs {
			runs.AppendRow(table.Row{r.RunID, r.Started.Format("2006-01-02 15:04:05"), r.Ended.Format("2006-01-02 15:04:05"), r.Records, r.Throws})
		}
		sb.WriteString("\n\n")
		sb.WriteString(render(runs, format))
	}
	return sb.String(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
