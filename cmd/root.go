// Package cmd implements the ravbot CLI commands.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ravgrowth/ravbot/internal/config"
	"github.com/ravgrowth/ravbot/internal/detect"
	"github.com/ravgrowth/ravbot/internal/lifecycle"
	"github.com/ravgrowth/ravbot/internal/logger"
	"github.com/ravgrowth/ravbot/internal/pipeline"
	"github.com/ravgrowth/ravbot/internal/registry"
	"github.com/ravgrowth/ravbot/internal/source"
	"github.com/ravgrowth/ravbot/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagDB     string
	flagUser   string
	flagQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:          "ravbot",
	Short:        "Find recurring charges and track their cancellation",
	Long:         "Detect subscriptions in bank transactions, list them with cancellation guidance, and keep an audit trail of cancellations.",
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	defaultUser := os.Getenv("RAVBOT_USER")
	if defaultUser == "" {
		defaultUser = "local"
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default "+config.ConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides general.db_path)")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", defaultUser, "User whose data to act on")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log warnings and errors")
}

// env is what a command needs after loading config: logger and open store.
type env struct {
	cfg   config.Config
	log   zerolog.Logger
	store *store.Store
}

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, logger.Nop(), err
	}
	level := logger.Level(cfg.General.LogLevel)
	if flagQuiet && level < zerolog.WarnLevel {
		level = zerolog.WarnLevel
	}
	return cfg, logger.New().Level(level), nil
}

func dbPath(cfg config.Config) string {
	switch {
	case flagDB != "":
		return flagDB
	case cfg.General.DBPath != "":
		return cfg.General.DBPath
	default:
		return config.DefaultDBPath()
	}
}

// openEnv loads config and opens the store. Callers must call close.
func openEnv() (*env, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path := dbPath(cfg)
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	log.Debug().Str("db", path).Str("user_id", flagUser).Msg("store opened")
	return &env{cfg: cfg, log: log, store: s}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn().Err(err).Msg("closing store")
	}
}

// fetcher returns the provider client when credentials are configured and
// reads account tokens as CSV paths under csvDir otherwise.
func (e *env) fetcher(csvDir string) source.Fetcher {
	p := e.cfg.Provider
	if c := source.NewClient(p.BaseURL, p.ClientID, p.Secret); c != nil {
		return c
	}
	return source.CSVFetcher{Dir: csvDir}
}

func (e *env) registry() *registry.Registry {
	return registry.New(e.store, registry.Options{
		PromotionMinCharges: e.cfg.Registry.PromotionMinCharges,
		ResurrectCancelled:  e.cfg.Registry.ResurrectCancelled,
	}, e.log)
}

// runner wires a detection run. s lists the accounts to fetch; it is usually
// the env store.
func (e *env) runner(s pipeline.Store, f source.Fetcher, windowDays int) *pipeline.Runner {
	d := e.cfg.Detection
	if windowDays <= 0 {
		windowDays = d.WindowDays
	}
	opts := pipeline.Options{
		WindowDays: windowDays,
		Bounds: detect.Bounds{
			WeeklyMin:  d.WeeklyMinDays,
			WeeklyMax:  d.WeeklyMaxDays,
			MonthlyMin: d.MonthlyMinDays,
			MonthlyMax: d.MonthlyMaxDays,
		},
		Workers:      d.MaxConcurrentFetches,
		FetchTimeout: d.FetchTimeout(),
	}
	return pipeline.NewRunner(s, f, e.registry(), opts, e.log)
}

func (e *env) lifecycle() *lifecycle.Manager {
	return lifecycle.NewManager(e.store, e.log)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
