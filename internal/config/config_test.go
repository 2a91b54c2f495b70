package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCategories(t *testing.T) {
	want := map[string][]string{
		"Images":    {"png", "jpg", "jpeg", "gif", "svg"},
		"Documents": {"pdf", "docx", "txt", "pptx", "xlsx"},
		"Videos":    {"mp4", "mov", "avi", "mkv"},
		"Archives":  {"zip", "rar", "tar", "gz"},
	}

	cats := DefaultCategories()
	if len(cats) != len(want) {
		t.Fatalf("DefaultCategories() returned %d categories, want %d", len(cats), len(want))
	}

	for _, cat := range cats {
		wantExts, ok := want[cat.Label]
		if !ok {
			t.Errorf("unexpected category %q", cat.Label)
			continue
		}
		if len(cat.Extensions) != len(wantExts) {
			t.Errorf("category %q has %d extensions, want %d", cat.Label, len(cat.Extensions), len(wantExts))
			continue
		}
		for i, ext := range cat.Extensions {
			if ext != wantExts[i] {
				t.Errorf("category %q extension[%d] = %q, want %q", cat.Label, i, ext, wantExts[i])
			}
		}
	}
}

func TestDefaultAllowedExtensions(t *testing.T) {
	want := []string{"txt", "pdf", "png", "jpg", "jpeg", "gif", "zip", "mp4", "docx", "xlsx", "yml", "yaml"}

	got := DefaultAllowedExtensions()
	if len(got) != len(want) {
		t.Fatalf("DefaultAllowedExtensions() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("allowed extension[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Storage.Root != "./storage" {
		t.Errorf("Storage.Root = %q, want ./storage", cfg.Storage.Root)
	}
	if cfg.Storage.PartialMaxAge != 24*time.Hour {
		t.Errorf("Storage.PartialMaxAge = %v, want 24h", cfg.Storage.PartialMaxAge)
	}
	if len(cfg.Storage.Categories) != 4 {
		t.Errorf("got %d categories, want 4", len(cfg.Storage.Categories))
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if !cfg.Watcher.Enabled {
		t.Error("Watcher.Enabled = false, want true")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DRIFTWOOD_SERVER_PORT", "9191")
	t.Setenv("DRIFTWOOD_STORAGE_ROOT", "/srv/files")
	t.Setenv("DRIFTWOOD_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Storage.Root != "/srv/files" {
		t.Errorf("Storage.Root = %q, want /srv/files", cfg.Storage.Root)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty root", func(c *Config) { c.Storage.Root = "" }, true},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"no categories", func(c *Config) { c.Storage.Categories = nil }, true},
		{"empty label", func(c *Config) { c.Storage.Categories[0].Label = "" }, true},
		{"no extensions", func(c *Config) { c.Storage.Categories[0].Extensions = nil }, true},
		{"no allow list", func(c *Config) { c.Storage.AllowedExtensions = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error: %v", err)
	}

	// A second write must refuse to clobber the file.
	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault() on existing file succeeded, want error")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of generated file error: %v", err)
	}

	def := Default()
	if cfg.Server.Port != def.Server.Port {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, def.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != def.Server.ShutdownTimeout {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, def.Server.ShutdownTimeout)
	}
	if cfg.Storage.Root != def.Storage.Root {
		t.Errorf("Storage.Root = %q, want %q", cfg.Storage.Root, def.Storage.Root)
	}
	if len(cfg.Storage.Categories) != len(def.Storage.Categories) {
		t.Errorf("got %d categories, want %d", len(cfg.Storage.Categories), len(def.Storage.Categories))
	}
	if cfg.Scheduler.PartialSweepInterval != def.Scheduler.PartialSweepInterval {
		t.Errorf("Scheduler.PartialSweepInterval = %v, want %v", cfg.Scheduler.PartialSweepInterval, def.Scheduler.PartialSweepInterval)
	}
}

func TestAddress(t *testing.T) {
	sc := ServerConfig{Host: "127.0.0.1", Port: 9000}
	if got := sc.Address(); got != "127.0.0.1:9000" {
		t.Errorf("Address() = %q, want 127.0.0.1:9000", got)
	}
}
