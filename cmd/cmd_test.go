package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ravgrowth/ravbot/internal/config"
)

func TestCSVFilesExpandsDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.CSV", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("date,name,amount\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	single := filepath.Join(t.TempDir(), "single.csv")
	if err := os.WriteFile(single, []byte("date,name,amount\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	files, err := csvFiles([]string{dir, single})
	if err != nil {
		t.Fatalf("csvFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3: %v", len(files), files)
	}
	for _, f := range files {
		if !filepath.IsAbs(f) {
			t.Fatalf("%s is not absolute", f)
		}
	}

	if _, err := csvFiles([]string{t.TempDir()}); err == nil {
		t.Fatal("empty directory should be an error")
	}
	if _, err := csvFiles([]string{filepath.Join(dir, "missing.csv")}); err == nil {
		t.Fatal("missing file should be an error")
	}
}

func TestApplySetupKeepsSecretWhenBlank(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Secret = "existing-secret"

	applySetup(&cfg, setupValues{
		clientID:   " client ",
		windowDays: "120",
		resurrect:  true,
		theme:      "tokyo-night",
	})

	if cfg.Provider.Secret != "existing-secret" {
		t.Fatalf("secret = %q, want it kept", cfg.Provider.Secret)
	}
	if cfg.Provider.ClientID != "client" {
		t.Fatalf("client id = %q", cfg.Provider.ClientID)
	}
	if cfg.Detection.WindowDays != 120 {
		t.Fatalf("window = %d, want 120", cfg.Detection.WindowDays)
	}
	if !cfg.Registry.ResurrectCancelled {
		t.Fatal("resurrect flag not applied")
	}
	if cfg.Appearance.Theme != "tokyo-night" {
		t.Fatalf("theme = %q", cfg.Appearance.Theme)
	}

	applySetup(&cfg, setupValues{windowDays: "soon", theme: "nope"})
	if cfg.Detection.WindowDays != 120 {
		t.Fatalf("invalid window overwrote value: %d", cfg.Detection.WindowDays)
	}
	if cfg.Appearance.Theme != "flexoki-dark" {
		t.Fatalf("unknown theme = %q, want flexoki-dark", cfg.Appearance.Theme)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"abcdefghijklmnopqrstuvwxyz": "abcd...wxyz",
		"abcdefgh":                   "ab...",
		"abc":                        "****",
	}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Fatalf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDBPathPrecedence(t *testing.T) {
	cfg := config.DefaultConfig()
	t.Setenv("XDG_CACHE_HOME", "/tmp/cache")

	flagDB = ""
	if got := dbPath(cfg); got != "/tmp/cache/ravbot/ravbot.db" {
		t.Fatalf("default = %s", got)
	}
	cfg.General.DBPath = "/data/from-config.db"
	if got := dbPath(cfg); got != "/data/from-config.db" {
		t.Fatalf("config = %s", got)
	}
	flagDB = "/data/from-flag.db"
	t.Cleanup(func() { flagDB = "" })
	if got := dbPath(cfg); got != "/data/from-flag.db" {
		t.Fatalf("flag = %s", got)
	}
}
