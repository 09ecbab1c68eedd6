package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ravgrowth/ravbot/internal/tui/theme"
)

// Hint is a key and what it does.
type Hint struct {
	Key  string
	Desc string
}

// RenderStatusBar renders key hints on the left and info on the right,
// padded to width.
func RenderStatusBar(width int, hints []Hint, info string) string {
	t := theme.Active
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, keyStyle.Render("["+h.Key+"]")+descStyle.Render(h.Desc))
	}
	left := " " + strings.Join(parts, "  ")
	right := ""
	if info != "" {
		right = descStyle.Render(info + " ")
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		// Drop the info before the hints.
		right = ""
		gap = width - lipgloss.Width(left)
		if gap < 0 {
			gap = 0
		}
	}
	return left + strings.Repeat(" ", gap) + right
}
