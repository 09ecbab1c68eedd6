package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/ravgrowth/ravbot/internal/config"
	"github.com/ravgrowth/ravbot/internal/tui/theme"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive configuration wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

type setupValues struct {
	clientID   string
	secret     string
	baseURL    string
	windowDays string
	resurrect  bool
	theme      string
}

func newSetupForm(v *setupValues, existingSecret string) *huh.Form {
	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themes = append(themes, huh.NewOption(t.Name, t.Name))
	}

	secretDesc := "Leave blank to keep reading RAVBOT_PROVIDER_SECRET or use CSV files."
	if existingSecret != "" {
		secretDesc = "Current: " + maskSecret(existingSecret) + ". Leave blank to keep it."
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Provider client ID").
				Description("From your transaction provider dashboard.").
				Value(&v.clientID),
			huh.NewInput().
				Title("Provider secret").
				Description(secretDesc).
				EchoMode(huh.EchoModePassword).
				Value(&v.secret),
			huh.NewInput().
				Title("Provider base URL").
				Placeholder("https://sandbox.plaid.com").
				Value(&v.baseURL),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Detection window (days)").
				Value(&v.windowDays).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n <= 0 {
						return errors.New("enter a positive number of days")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Re-detect cancelled subscriptions?").
				Description("When on, a cancelled merchant that keeps charging moves back to detected.").
				Value(&v.resurrect),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&v.theme),
		),
	)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	v := setupValues{
		clientID:   cfg.Provider.ClientID,
		baseURL:    cfg.Provider.BaseURL,
		windowDays: strconv.Itoa(cfg.Detection.WindowDays),
		resurrect:  cfg.Registry.ResurrectCancelled,
		theme:      cfg.Appearance.Theme,
	}
	if err := newSetupForm(&v, cfg.Provider.Secret).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup aborted, nothing saved.")
			return nil
		}
		return err
	}

	applySetup(&cfg, v)
	if err := cfg.Validate(); err != nil {
		return err
	}
	path := flagConfig
	if path == "" {
		path = config.ConfigPath()
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", path)
	fmt.Println("  Run `ravbot setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}

func applySetup(cfg *config.Config, v setupValues) {
	cfg.Provider.ClientID = strings.TrimSpace(v.clientID)
	if s := strings.TrimSpace(v.secret); s != "" {
		cfg.Provider.Secret = s
	}
	cfg.Provider.BaseURL = strings.TrimSpace(v.baseURL)
	if n, err := strconv.Atoi(strings.TrimSpace(v.windowDays)); err == nil && n > 0 {
		cfg.Detection.WindowDays = n
	}
	cfg.Registry.ResurrectCancelled = v.resurrect
	cfg.Appearance.Theme = theme.ByName(v.theme).Name
}

func maskSecret(s string) string {
	if len(s) > 16 {
		return s[:4] + "..." + s[len(s)-4:]
	}
	if len(s) > 4 {
		return s[:2] + "..."
	}
	return "****"
}
