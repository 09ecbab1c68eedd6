package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ravgrowth/ravbot/internal/cli"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/present"
	"github.com/ravgrowth/ravbot/internal/tui/components"
	"github.com/ravgrowth/ravbot/internal/tui/theme"
)

func (a App) modes() []components.Mode {
	return []components.Mode{
		{Name: "price", Key: 'p', Active: a.sort == present.ByPrice},
		{Name: "first seen", Key: 'f', Active: a.sort == present.ByFirstSeen},
		{Name: "cancelled", Key: 'a', Active: a.all},
	}
}

func modeAt(a App, x int) int {
	return components.ModeAtX(a.modes(), x)
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  ravbot needs at least %d columns.\n",
			a.width, minTerminalWidth)
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.confirm != nil {
		return a.viewCentered(a.confirm.View())
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewCentered(body string) string {
	t := theme.Active
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3).
		Render(body)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}

func (a App) viewLoading() string {
	t := theme.Active
	logo := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true).Render("◈ ravbot")
	muted := lipgloss.NewStyle().Foreground(t.TextMuted)
	return a.viewCentered(logo + muted.Render(" · subscriptions") + "\n\n" +
		a.spinner.View() + muted.Render(" Loading subscriptions..."))
}

func (a App) viewHelp() string {
	t := theme.Active
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	bindings := []struct{ key, desc string }{
		{"j k", "Move selection"},
		{"g G", "First / last"},
		{"p", "Sort by price"},
		{"f", "Sort by first seen"},
		{"a", "Show or hide cancelled"},
		{"c", "Mark selected as cancelled"},
		{"r", "Re-run detection"},
		{"esc", "Clear message"},
		{"q", "Quit"},
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true).Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, bind := range bindings {
		fmt.Fprintf(&b, "  %s  %s\n", keyStyle.Render(fmt.Sprintf("%-5s", bind.key)), descStyle.Render(bind.desc))
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(t.TextDim).Render("Press any key to close"))
	return a.viewCentered(b.String())
}

func (a App) viewMain() string {
	cw := a.contentWidth()

	header := a.renderHeader(cw) + "\n" + components.RenderModeBar(a.modes())
	stats := components.StatRow([]components.Stat{
		{Label: "Active", Value: fmt.Sprintf("%d", a.totals.Active)},
		{Label: "Monthly", Value: cli.FormatMoney(a.totals.Monthly)},
		{Label: "Yearly", Value: cli.FormatMoney(a.totals.Yearly)},
		{Label: "Loaded", Value: cli.FormatAge(a.lastLoad, time.Now())},
	}, cw)

	widths := components.SplitWidth(cw, 5)
	listW := widths[0] + widths[1] + widths[2]
	detailW := cw - listW
	body := components.JoinPanels([]string{
		components.Panel(fmt.Sprintf("Subscriptions (%d)", len(a.rows)), a.renderList(listW), listW, true),
		components.Panel("Details", a.renderDetail(detailW), detailW, false),
	})

	hints := []components.Hint{{Key: "c", Desc: "ancel"}, {Key: "r", Desc: "erun"}, {Key: "?", Desc: "help"}, {Key: "q", Desc: "uit"}}
	if a.deps.Detector == nil {
		hints = append(hints[:1], hints[2:]...)
	}
	status := components.RenderStatusBar(cw, hints, a.deps.UserID)

	out := lipgloss.JoinVertical(lipgloss.Left, header, stats, body, status)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Top, out)
}

func (a App) renderHeader(width int) string {
	t := theme.Active
	left := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true).Render(" ◈ ravbot")

	var right string
	switch {
	case a.running && a.progressMax > 0:
		right = a.spinner.View() + " " + components.ProgressBar(float64(a.progress)/float64(a.progressMax), 20)
	case a.running:
		right = a.spinner.View() + lipgloss.NewStyle().Foreground(t.TextMuted).Render(" Detecting...")
	case a.notice != "":
		color := t.Green
		if a.failed {
			color = t.Orange
		}
		right = lipgloss.NewStyle().Foreground(color).Render(cli.Truncate(a.notice, width-14))
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (a App) renderList(outerWidth int) string {
	t := theme.Active
	inner := components.PanelInnerWidth(outerWidth)
	h := a.listHeight()

	const amountW, intervalW, statusW = 10, 8, 14
	nameW := inner - amountW - intervalW - statusW - 5
	if nameW < 8 {
		nameW = 8
	}

	head := lipgloss.NewStyle().Foreground(t.TextDim)
	lines := []string{head.Render(fmt.Sprintf("  %-*s %*s %-*s %-*s",
		nameW, "Merchant", amountW, "Amount", intervalW, "Every", statusW, "Status"))}

	if len(a.rows) == 0 {
		msg := "No subscriptions yet."
		if a.deps.Detector != nil {
			msg += " Press r to run detection."
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(t.TextMuted).Render("  "+msg))
	}

	end := a.offset + h
	if end > len(a.rows) {
		end = len(a.rows)
	}
	for i := a.offset; i < end; i++ {
		r := a.rows[i]
		marker := "  "
		if i == a.cursor {
			marker = "▸ "
		}
		text := fmt.Sprintf("%s%-*s %*s %-*s ",
			marker,
			nameW, cli.Truncate(r.Merchant, nameW),
			amountW, cli.FormatMoney(r.Amount),
			intervalW, r.Interval)

		style := lipgloss.NewStyle().Foreground(t.TextPrimary)
		if r.Status == model.StatusCancelled {
			style = style.Foreground(t.TextDim)
		}
		statusStyle := lipgloss.NewStyle().Foreground(t.StatusColor(r.Status))
		if i == a.cursor {
			style = style.Background(t.SurfaceHover).Bold(true)
			statusStyle = statusStyle.Background(t.SurfaceHover)
		}
		lines = append(lines, style.Render(text)+statusStyle.Render(fmt.Sprintf("%-*s", statusW, present.StatusLabel(r.Status))))
	}

	for len(lines) < h+1 {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (a App) renderDetail(outerWidth int) string {
	t := theme.Active
	inner := components.PanelInnerWidth(outerWidth)
	h := a.listHeight() + 1

	r, ok := a.selected()
	if !ok {
		return padLines("", h)
	}

	label := lipgloss.NewStyle().Foreground(t.TextMuted)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary)
	section := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)

	field := func(name, v string) string {
		return label.Render(fmt.Sprintf("%-11s", name)) + value.Render(v)
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true).Render(cli.Truncate(r.Merchant, inner)))
	b.WriteString("\n")
	b.WriteString(field("Amount", cli.FormatMoney(r.Amount)+" "+r.Interval) + "\n")
	b.WriteString(label.Render(fmt.Sprintf("%-11s", "Status")) +
		lipgloss.NewStyle().Foreground(t.StatusColor(r.Status)).Render(present.StatusLabel(r.Status)) + "\n")
	b.WriteString(field("Yearly", cli.FormatMoney(r.YearlyCost)) + "\n")
	b.WriteString(field("First seen", cli.FormatDate(r.FirstSeen)) + "\n")
	if r.Count > 1 {
		b.WriteString(field("Merged", fmt.Sprintf("%d entries", r.Count)) + "\n")
	}

	b.WriteString("\n")
	if r.Guidance.Known {
		b.WriteString(section.Render("How to cancel") + "\n")
	} else {
		b.WriteString(section.Render("Find how to cancel") + "\n")
	}
	b.WriteString(value.Render(cli.Truncate(r.Guidance.URL, inner)) + "\n")

	b.WriteString("\n")
	b.WriteString(section.Render("Recent activity") + "\n")
	actions, loaded := a.history[r.ID]
	switch {
	case !loaded:
		b.WriteString(label.Render("loading...") + "\n")
	case len(actions) == 0:
		b.WriteString(label.Render("none") + "\n")
	default:
		for _, act := range actions {
			line := cli.FormatDate(act.CreatedAt) + " " + act.Action
			if d := cli.FormatDetails(act.Details, "merchant"); d != "" {
				line += " " + d
			}
			b.WriteString(label.Render(cli.Truncate(line, inner)) + "\n")
		}
	}

	return padLines(strings.TrimRight(b.String(), "\n"), h)
}

// padLines truncates or pads s to exactly h lines.
func padLines(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > h {
		lines = lines[:h]
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
