package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ravgrowth/ravbot/internal/pipeline"
	"github.com/ravgrowth/ravbot/internal/present"
)

func loadSubsCmd(deps Deps) tea.Cmd {
	return func() tea.Msg {
		subs, err := deps.Store.ListSubscriptions(context.Background(), deps.UserID)
		return subsLoadedMsg{subs: subs, err: err}
	}
}

func historyCmd(deps Deps, id string) tea.Cmd {
	return func() tea.Msg {
		actions, err := deps.Lifecycle.History(context.Background(), deps.UserID, id, historyLimit)
		return historyMsg{id: id, actions: actions, err: err}
	}
}

func cancelCmd(deps Deps, row present.Row) tea.Cmd {
	return func() tea.Msg {
		res, err := deps.Lifecycle.Cancel(context.Background(), deps.UserID, row.ID)
		return cancelDoneMsg{merchant: row.Merchant, res: res, err: err}
	}
}

// detectCmd runs detection in a background goroutine, streaming progressMsg
// updates and a final detectDoneMsg through sub.
func detectCmd(deps Deps, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			// Drop updates while the UI is behind; the next one catches up.
			progressFn := func(current, total int) {
				select {
				case sub <- progressMsg{current: current, total: total}:
				default:
				}
			}
			res, err := deps.Detector.RunWithProgress(context.Background(), deps.UserID, progressFn)
			sub <- detectDoneMsg{res: res, err: err}
		}()
		return <-sub
	}
}

func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

func detectSummary(res pipeline.Result) string {
	s := fmt.Sprintf("Detection: %d found, %d new", len(res.Found), res.Inserted)
	if n := len(res.FetchErrors); n > 0 {
		s += fmt.Sprintf(", %d of %d accounts failed", n, res.Accounts)
	}
	return s
}

func joinWarnings(w []string) string {
	return strings.Join(w, "; ")
}
