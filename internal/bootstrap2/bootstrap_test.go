package bootstrap2

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestInitAndShutdown(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(dir, "bus.db")
	cfg.ArchiveRoot = filepath.Join(dir, "archive")
	cfg.DiagAddr = "" // avoid binding a port in tests

	app, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if app.Store == nil || app.WBQ == nil || app.Ledger == nil || app.Metrics == nil || app.Locks == nil || app.Search == nil {
		t.Fatal("Init left a singleton nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.Run(ctx)
	cancel()

	if err := app.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults for missing config file, got %+v", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bus.yaml")
	writeYAML(t, path, "db_path: custom.db\nwbq_capacity: 10\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "custom.db" || cfg.WBQCapacity != 10 {
		t.Fatalf("expected overrides applied, got %+v", cfg)
	}
	if cfg.ArchiveRoot != DefaultConfig().ArchiveRoot {
		t.Fatalf("expected unreferenced fields to keep their defaults")
	}
}

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
