// Package tui implements the interactive subscription browser.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ravgrowth/ravbot/internal/lifecycle"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/pipeline"
	"github.com/ravgrowth/ravbot/internal/present"
	"github.com/ravgrowth/ravbot/internal/tui/theme"
)

// Detector runs detection, reporting per-account fetch progress.
type Detector interface {
	RunWithProgress(ctx context.Context, userID string, progressFn pipeline.ProgressFunc) (pipeline.Result, error)
}

// Lifecycle is the cancellation state machine.
type Lifecycle interface {
	Cancel(ctx context.Context, caller, id string) (lifecycle.Result, error)
	History(ctx context.Context, caller, id string, limit int) ([]model.SubscriptionAction, error)
}

// Store lists the user's subscriptions.
type Store interface {
	ListSubscriptions(ctx context.Context, userID string) ([]model.Subscription, error)
}

// Deps are the collaborators the browser drives.
type Deps struct {
	UserID        string
	Store         Store
	Lifecycle     Lifecycle
	Detector      Detector // nil disables re-running detection
	Sort          present.SortKey
	ShowCancelled bool
}

const (
	minTerminalWidth = 70
	maxContentWidth  = 160
	historyLimit     = 5
	// header (2) + stats (4) + status bar (1)
	chromeHeight = 7
)

type subsLoadedMsg struct {
	subs []model.Subscription
	err  error
}

type historyMsg struct {
	id      string
	actions []model.SubscriptionAction
	err     error
}

type progressMsg struct {
	current, total int
}

type detectDoneMsg struct {
	res pipeline.Result
	err error
}

type cancelDoneMsg struct {
	merchant string
	res      lifecycle.Result
	err      error
}

// App is the root bubbletea model.
type App struct {
	deps Deps

	subs   []model.Subscription
	rows   []present.Row
	totals present.Totals
	sort   present.SortKey
	all    bool // show cancelled groups

	cursor  int
	offset  int
	history map[string][]model.SubscriptionAction

	loaded   bool
	lastLoad time.Time
	notice   string
	failed   bool // notice is an error

	running     bool
	progress    int
	progressMax int
	loadSub     chan tea.Msg
	spinner     spinner.Model

	confirm    *huh.Form
	confirmYes *bool // bound to the form; App is copied on every Update
	confirmRow present.Row

	width    int
	height   int
	showHelp bool
}

// NewApp creates the browser over deps.
func NewApp(deps Deps) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	sort := deps.Sort
	if sort == "" {
		sort = present.ByPrice
	}
	return App{
		deps:    deps,
		sort:    sort,
		all:     deps.ShowCancelled,
		history: make(map[string][]model.SubscriptionAction),
		spinner: sp,
		loadSub: make(chan tea.Msg, 1),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		loadSubsCmd(a.deps),
		a.spinner.Tick,
	)
}

// selected returns the row under the cursor.
func (a App) selected() (present.Row, bool) {
	if a.cursor < 0 || a.cursor >= len(a.rows) {
		return present.Row{}, false
	}
	return a.rows[a.cursor], true
}

// rebuild recomputes the visible rows, keeping the cursor on the same
// merchant when it is still listed.
func (a *App) rebuild() {
	var keep string
	if r, ok := a.selected(); ok {
		keep = r.Key
	}

	a.rows = present.View(a.subs, present.Options{Sort: a.sort, ShowCancelled: a.all})
	a.totals = present.Sum(a.rows)

	a.cursor = 0
	for i, r := range a.rows {
		if r.Key == keep {
			a.cursor = i
			break
		}
	}
	a.clampOffset()
}

// listHeight is the number of rows visible in the list panel.
func (a App) listHeight() int {
	h := a.height - chromeHeight - 4 // panel border, title, column header
	if h < 3 {
		h = 3
	}
	return h
}

func (a *App) clampOffset() {
	h := a.listHeight()
	if a.cursor < a.offset {
		a.offset = a.cursor
	}
	if a.cursor >= a.offset+h {
		a.offset = a.cursor - h + 1
	}
	if a.offset < 0 {
		a.offset = 0
	}
}

// move shifts the cursor by delta and requests history for the new row.
func (a App) move(delta int) (App, tea.Cmd) {
	next := a.cursor + delta
	if next < 0 {
		next = 0
	}
	if next > len(a.rows)-1 {
		next = len(a.rows) - 1
	}
	if next == a.cursor || next < 0 {
		return a, nil
	}
	a.cursor = next
	a.clampOffset()
	return a, a.historyForSelected()
}

func (a App) historyForSelected() tea.Cmd {
	r, ok := a.selected()
	if !ok {
		return nil
	}
	if _, cached := a.history[r.ID]; cached {
		return nil
	}
	return historyCmd(a.deps, r.ID)
}

func (a *App) setNotice(msg string, failed bool) {
	a.notice = msg
	a.failed = failed
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.clampOffset()
		if a.confirm != nil {
			a.confirm = a.confirm.WithWidth(a.formWidth())
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.confirm != nil {
			return a.updateConfirm(msg)
		}
		return a.updateKeys(msg.String())

	case tea.MouseMsg:
		if !a.loaded || a.confirm != nil || a.showHelp {
			return a, nil
		}
		return a.updateMouse(msg)

	case subsLoadedMsg:
		a.loaded = true
		if msg.err != nil {
			a.setNotice("Could not load subscriptions: "+msg.err.Error(), true)
			return a, nil
		}
		a.subs = msg.subs
		a.lastLoad = time.Now()
		// Audit history may have moved on since the last load.
		a.history = make(map[string][]model.SubscriptionAction)
		a.rebuild()
		return a, a.historyForSelected()

	case historyMsg:
		if msg.err == nil {
			a.history[msg.id] = msg.actions
		}
		return a, nil

	case progressMsg:
		a.progress = msg.current
		a.progressMax = msg.total
		return a, waitForLoadMsg(a.loadSub)

	case detectDoneMsg:
		a.running = false
		a.progress, a.progressMax = 0, 0
		if msg.err != nil {
			a.setNotice("Detection failed: "+msg.err.Error(), true)
		} else {
			a.setNotice(detectSummary(msg.res), len(msg.res.FetchErrors) > 0)
		}
		return a, loadSubsCmd(a.deps)

	case cancelDoneMsg:
		if msg.err != nil {
			a.setNotice("Cancel failed: "+msg.err.Error(), true)
		} else if len(msg.res.Warnings) > 0 {
			a.setNotice(msg.merchant+" cancelled with warnings: "+joinWarnings(msg.res.Warnings), true)
		} else {
			a.setNotice(msg.merchant+" marked "+present.StatusLabel(msg.res.Status), false)
		}
		return a, loadSubsCmd(a.deps)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if a.confirm != nil {
		return a.updateConfirm(msg)
	}
	return a, nil
}

func (a App) updateKeys(key string) (tea.Model, tea.Cmd) {
	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}
	if key == "q" {
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}

	switch key {
	case "j", "down":
		return a.move(1)
	case "k", "up":
		return a.move(-1)
	case "g", "home":
		return a.move(-len(a.rows))
	case "G", "end":
		return a.move(len(a.rows))
	case "p":
		a.sort = present.ByPrice
		a.rebuild()
	case "f":
		a.sort = present.ByFirstSeen
		a.rebuild()
	case "a":
		a.all = !a.all
		a.rebuild()
		return a, a.historyForSelected()
	case "c":
		r, ok := a.selected()
		if !ok {
			return a, nil
		}
		if r.Status == model.StatusCancelled {
			a.setNotice(r.Merchant+" is already cancelled", false)
			return a, nil
		}
		a.confirmRow = r
		a.confirmYes = new(bool)
		a.confirm = newCancelForm(r, a.confirmYes).WithWidth(a.formWidth())
		return a, a.confirm.Init()
	case "r":
		if a.running || a.deps.Detector == nil {
			return a, nil
		}
		a.running = true
		a.setNotice("", false)
		return a, tea.Batch(detectCmd(a.deps, a.loadSub), a.spinner.Tick)
	case "esc":
		a.setNotice("", false)
	}
	return a, nil
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	// Content is centered when the terminal is wider than maxContentWidth.
	msg.X -= (a.width - a.contentWidth()) / 2
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		return a.move(-1)
	case tea.MouseButtonWheelDown:
		return a.move(1)
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionPress {
			return a, nil
		}
		if msg.Y == 1 {
			switch modeAt(a, msg.X) {
			case 0:
				return a.updateKeys("p")
			case 1:
				return a.updateKeys("f")
			case 2:
				return a.updateKeys("a")
			}
			return a, nil
		}
		if idx := a.rowAtY(msg.Y); idx >= 0 {
			return a.move(idx - a.cursor)
		}
	}
	return a, nil
}

// rowAtY maps a screen line to a row index, or -1.
func (a App) rowAtY(y int) int {
	// header, stats, panel top border, panel title, column header
	first := 2 + 4 + 1 + 1 + 1
	i := y - first
	if i < 0 || i >= a.listHeight() {
		return -1
	}
	idx := a.offset + i
	if idx >= len(a.rows) {
		return -1
	}
	return idx
}

func (a App) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.confirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.confirm = f
	}

	switch a.confirm.State {
	case huh.StateCompleted:
		a.confirm = nil
		if a.confirmYes == nil || !*a.confirmYes {
			return a, nil
		}
		a.setNotice("Cancelling "+a.confirmRow.Merchant+"...", false)
		return a, cancelCmd(a.deps, a.confirmRow)
	case huh.StateAborted:
		a.confirm = nil
		return a, nil
	}
	return a, cmd
}

func (a App) contentWidth() int {
	if a.width > maxContentWidth {
		return maxContentWidth
	}
	return a.width
}

func (a App) formWidth() int {
	w := a.contentWidth() - 10
	if w > 70 {
		w = 70
	}
	if w < 30 {
		w = 30
	}
	return w
}
