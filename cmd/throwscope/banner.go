package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/throwscope/internal/config"
)

func printStartupBanner(w io.Writer, cfg config.Config, p *pipeline, inputs []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╦╗╦ ╦╦═╗╔═╗╦ ╦╔═╗╔═╗╔═╗╔═╗╔═╗╔═╗
     ║ ╠═╣╠╦╝║ ║║║║╚═╗║  ║ ║╠═╝║╣
     ╩ ╩ ╩╩╚═╚═╝╚╩╝╚═╝╚═╝╚═╝╩  ╚═╝`)

	var lines []string
	lines = append(lines, "", logo, "    "+dim.Render("v"+version), "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Inputs"), "")
	for _, in := range inputs {
		lines = append(lines, fmt.Sprintf("    %s  Source         %s", check, cyan.Render(shortenPath(in))))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Output"), "")
	if p.auditSink != nil {
		lines = append(lines, fmt.Sprintf("    %s  Audit Log      %s", check, dim.Render(shortenPath(p.auditSink.Path()))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Audit Log      %s", dot, dim.Render("disabled")))
	}
	if p.store != nil {
		lines = append(lines, fmt.Sprintf("    %s  History        %s", check, dim.Render(shortenPath(p.store.DBPath()))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  History        %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Classifier"), "")
	if cfg.SymbolTable != "" {
		lines = append(lines, fmt.Sprintf("    %s  Symbols        %s", check, dim.Render(fmt.Sprintf("%d modules from %s", p.symbols.Len(), shortenPath(cfg.SymbolTable)))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Symbols        %s", dot, dim.Render("none (attribution by stack text only)")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Pass Rules     %s", check, dim.Render(fmt.Sprintf("%d double, %d single", len(cfg.DoublePass), len(cfg.SinglePass)))))
	lines = append(lines, fmt.Sprintf("    %s  Window         %s", check, dim.Render(fmt.Sprintf("%s, top %d", cfg.Window, cfg.TopN))))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if _, err := os.Stat(cfg.ConfigPath); cfg.ConfigPath != "" && err == nil {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
