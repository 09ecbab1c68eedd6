package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ravgrowth/ravbot/internal/tui/theme"
)

// Mode is a toggleable view setting shown in the mode bar.
type Mode struct {
	Name   string
	Key    rune
	Active bool
}

// RenderModeBar renders modes with their shortcut keys; active modes are
// highlighted.
func RenderModeBar(modes []Mode) string {
	t := theme.Active
	activeStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	inactiveStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	parts := make([]string, 0, len(modes))
	for _, m := range modes {
		key := dimStyle.Render("[") + keyStyle.Render(string(m.Key)) + dimStyle.Render("]")
		if m.Active {
			parts = append(parts, key+activeStyle.Render(m.Name))
		} else {
			parts = append(parts, key+inactiveStyle.Render(m.Name))
		}
	}
	return " " + strings.Join(parts, "  ")
}

// ModeAtX returns the index of the mode rendered at column x, or -1.
func ModeAtX(modes []Mode, x int) int {
	pos := 1
	for i, m := range modes {
		w := 3 + lipgloss.Width(m.Name)
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + 2
	}
	return -1
}
