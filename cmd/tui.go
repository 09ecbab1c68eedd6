package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/ravgrowth/ravbot/internal/logger"
	"github.com/ravgrowth/ravbot/internal/present"
	"github.com/ravgrowth/ravbot/internal/tui"
	"github.com/ravgrowth/ravbot/internal/tui/theme"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse and cancel subscriptions interactively",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&flagSubsSort, "sort", "price", "Initial sort: price or first-seen")
	tuiCmd.Flags().BoolVarP(&flagSubsAll, "all", "a", false, "Start with cancelled subscriptions shown")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	// Log lines would tear the alternate screen.
	e.log = logger.Nop()

	theme.SetActive(e.cfg.Appearance.Theme)
	lipgloss.SetColorProfile(termenv.TrueColor)

	app := tui.NewApp(tui.Deps{
		UserID:        flagUser,
		Store:         e.store,
		Lifecycle:     e.lifecycle(),
		Detector:      e.runner(e.store, e.fetcher(""), 0),
		Sort:          present.ParseSortKey(flagSubsSort),
		ShowCancelled: flagSubsAll,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
