package cmd

import (
	"fmt"

	"github.com/ravgrowth/ravbot/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	path := flagConfig
	if path == "" {
		path = config.ConfigPath()
	}
	fmt.Printf("  Config file: %s\n", path)
	if config.Exists(path) {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Database:   %s\n", dbPath(cfg))
	fmt.Printf("    Log level:  %s\n", cfg.General.LogLevel)
	fmt.Println()

	d := cfg.Detection
	fmt.Println("  [Detection]")
	fmt.Printf("    Window:             %d days\n", d.WindowDays)
	fmt.Printf("    Fetch timeout:      %s\n", d.FetchTimeout())
	fmt.Printf("    Concurrent fetches: %d\n", d.MaxConcurrentFetches)
	fmt.Printf("    Weekly gaps:        %d-%d days\n", d.WeeklyMinDays, d.WeeklyMaxDays)
	fmt.Printf("    Monthly gaps:       %d-%d days\n", d.MonthlyMinDays, d.MonthlyMaxDays)
	fmt.Println()

	fmt.Println("  [Registry]")
	fmt.Printf("    Promote after:       %d charges\n", cfg.Registry.PromotionMinCharges)
	fmt.Printf("    Resurrect cancelled: %v\n", cfg.Registry.ResurrectCancelled)
	fmt.Println()

	fmt.Println("  [Lifecycle]")
	fmt.Printf("    Sweep pending after: %s\n", cfg.Lifecycle.StalePendingAfter())
	fmt.Println()

	fmt.Println("  [Provider]")
	if cfg.Provider.ClientID != "" && cfg.Provider.Secret != "" {
		fmt.Printf("    Client ID: %s\n", cfg.Provider.ClientID)
		fmt.Printf("    Secret:    %s\n", maskSecret(cfg.Provider.Secret))
		if cfg.Provider.BaseURL != "" {
			fmt.Printf("    Base URL:  %s\n", cfg.Provider.BaseURL)
		}
	} else {
		fmt.Println("    Not configured; account tokens are read as CSV paths")
	}
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address: %s\n", cfg.Server.Addr)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `ravbot setup` to reconfigure.")
	return nil
}
