// Package components provides the widgets of the subscription browser.
package components

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/ravgrowth/ravbot/internal/tui/theme"
)

// Stat is one labelled figure in a StatRow.
type Stat struct {
	Label string
	Value string
	Note  string
}

// SplitWidth divides total into n widths summing exactly to total; the first
// widths absorb the remainder.
func SplitWidth(total, n int) []int {
	if n <= 0 {
		return nil
	}
	base, rem := total/n, total%n
	widths := make([]int, n)
	for i := range widths {
		widths[i] = base
		if i < rem {
			widths[i]++
		}
	}
	return widths
}

func panelStyle(outerWidth int, focused bool) lipgloss.Style {
	t := theme.Active
	inner := outerWidth - 2
	if inner < 10 {
		inner = 10
	}
	border := t.Border
	if focused {
		border = t.BorderAccent
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(inner).
		Padding(0, 1)
}

// StatCard renders a small bordered figure with label and optional note.
func StatCard(s Stat, outerWidth int) string {
	t := theme.Active
	body := lipgloss.NewStyle().Foreground(t.TextMuted).Render(s.Label) + "\n" +
		lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true).Render(s.Value)
	if s.Note != "" {
		body += "\n" + lipgloss.NewStyle().Foreground(t.TextDim).Render(s.Note)
	}
	return panelStyle(outerWidth, false).Render(body)
}

// StatRow renders stats side by side across totalWidth.
func StatRow(stats []Stat, totalWidth int) string {
	if len(stats) == 0 {
		return ""
	}
	widths := SplitWidth(totalWidth, len(stats))
	cards := make([]string, len(stats))
	for i, s := range stats {
		cards[i] = StatCard(s, widths[i])
	}
	return JoinPanels(cards)
}

// Panel renders a bordered block with an optional title.
func Panel(title, body string, outerWidth int, focused bool) string {
	content := body
	if title != "" {
		t := theme.Active
		content = lipgloss.NewStyle().Foreground(t.TextMuted).Bold(true).Render(title) + "\n" + body
	}
	return panelStyle(outerWidth, focused).Render(content)
}

// JoinPanels places rendered panels next to each other, top aligned.
func JoinPanels(panels []string) string {
	if len(panels) == 0 {
		return ""
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panels...)
}

// PanelInnerWidth is the text width available inside a Panel.
func PanelInnerWidth(outerWidth int) int {
	w := outerWidth - 4
	if w < 10 {
		w = 10
	}
	return w
}
