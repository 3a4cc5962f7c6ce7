package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/narravoxlabs/narravox/internal/studio"
	"github.com/narravoxlabs/narravox/pkg/override"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#88C0D0"))
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4C566A"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ECEFF4")).Background(lipgloss.Color("#434C5E"))
	dirtyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B"))
	manualStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#81A1C1"))
	historyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4C566A"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#BF616A"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#A3BE8C"))
	savingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4C566A"))
	labelStyle    = lipgloss.NewStyle().Width(14).Foreground(lipgloss.Color("#88C0D0"))
)

func (m *Model) View() string {
	if m.quitting {
		return "\n  Saving changes before exit...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.mode {
	case modeEdit, modeAdd:
		b.WriteString(m.renderForm())
	default:
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("narravox studio")
	sum := m.snap.Summary
	meta := fmt.Sprintf("%d overrides · %d entities · %d heteronyms", m.snap.Overrides, sum.Entities, sum.Heteronyms)
	if key := m.snap.CacheKey; key != "" {
		meta += " · cache " + shorten(key, 12)
	}
	return fmt.Sprintf("  %s\n  %s\n", title, headerStyle.Render(meta))
}

func (m *Model) renderList() string {
	if m.mode == modeFilter || m.filter.Value() != "" {
		prompt := "  filter: " + m.filter.View() + "\n"
		if len(m.rows) == 0 {
			return prompt + headerStyle.Render("  no overrides match") + "\n"
		}
		return prompt + m.renderRows()
	}
	if len(m.rows) == 0 {
		return headerStyle.Render("  no overrides yet; press a to add one") + "\n"
	}
	return m.renderRows()
}

func (m *Model) renderRows() string {
	visible := m.visibleRows()
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(len(m.rows), start+visible)

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(i))
		b.WriteString("\n")
	}
	if end < len(m.rows) {
		b.WriteString(headerStyle.Render(fmt.Sprintf("  ... %d more", len(m.rows)-end)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderRow(i int) string {
	r := m.rows[i]
	mark := " "
	if r.dirty {
		mark = dirtyStyle.Render("*")
	}

	src := historyStyle.Render("history")
	if r.ov.Source == override.SourceManual {
		src = manualStyle.Render("manual ")
	}

	line := fmt.Sprintf("%-18s %-24s %-28s", shorten(r.ov.Token, 18), shorten(r.ov.Pronunciation, 24), shorten(r.ov.Voice, 28))
	if i == m.cursor {
		return "  " + selectedStyle.Render("> "+line) + " " + src + mark
	}
	return "    " + line + " " + src + mark
}

func (m *Model) renderForm() string {
	var b strings.Builder
	if m.mode == modeAdd {
		b.WriteString("  " + titleStyle.Render("new override") + "\n\n")
	} else {
		name := m.editID
		for _, r := range m.rows {
			if r.ov.ID == m.editID {
				name = r.ov.Token
				break
			}
		}
		b.WriteString("  " + titleStyle.Render("editing "+name) + "\n\n")
	}
	for i := range m.inputs {
		b.WriteString("  " + labelStyle.Render(m.labels[i]) + m.inputs[i].View() + "\n")
	}
	if m.editErr != "" {
		b.WriteString("\n  " + errStyle.Render(m.editErr) + "\n")
	}
	return b.String()
}

func (m *Model) renderStatus() string {
	label := m.snap.Status.Label()
	var styled string
	switch m.snap.Status {
	case studio.StatusFailed:
		styled = errStyle.Render(label)
	case studio.StatusSaving, studio.StatusPending:
		styled = savingStyle.Render(label)
	case studio.StatusSaved:
		styled = okStyle.Render(label)
	default:
		styled = headerStyle.Render("idle")
	}
	if n := m.snap.Dirty; n > 0 {
		styled += headerStyle.Render(fmt.Sprintf(" (%d pending)", n))
	}
	if m.flash != "" {
		f := m.flash
		if m.flashIsErr {
			styled += "  " + errStyle.Render(f)
		} else {
			styled += "  " + headerStyle.Render(f)
		}
	}
	return "  " + styled
}

func (m *Model) renderHelp() string {
	var help string
	switch m.mode {
	case modeFilter:
		help = "enter apply · esc clear"
	case modeEdit:
		help = "tab next field · shift+↑/↓ nudge weight · esc/enter done (edits save automatically)"
	case modeAdd:
		help = "tab next field · shift+↑/↓ nudge weight · enter submit · esc cancel"
	default:
		help = "j/k move · enter edit · a add · p preview · x delete · s save · r refresh · / filter · q quit"
	}
	return helpStyle.Render("  " + help)
}

// visibleRows is the list viewport height given the fixed chrome above and
// below it.
func (m *Model) visibleRows() int {
	if m.height == 0 {
		return 20
	}
	return max(3, m.height-8)
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	return s[:n-1] + "…"
}
