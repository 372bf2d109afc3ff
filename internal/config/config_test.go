package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"patina/internal/config"
)

func TestDefaultValidatesWithAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.APIKey = "test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure without api key")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PATINA_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Fatalf("api key = %q, want env-key", cfg.Provider.APIKey)
	}
	if cfg.Pipeline.Concurrency != 2 {
		t.Fatalf("concurrency = %d, want default 2", cfg.Pipeline.Concurrency)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[provider]",
		`api_key = "file-key"`,
		"restore_timeout = 300",
		"",
		"[pipeline]",
		"concurrency = 4",
		"enable_outpaint = false",
		"",
		"[logging]",
		`format = "json"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Provider.APIKey != "file-key" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.RestoreTimeout != 300 {
		t.Errorf("restore timeout = %d, want 300", cfg.Provider.RestoreTimeout)
	}
	if cfg.Pipeline.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", cfg.Pipeline.Concurrency)
	}
	if cfg.Pipeline.EnableOutpaint {
		t.Error("enable_outpaint should be false")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("log format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[provider]",
		`api_key = "k"`,
		"",
		"[pipeline]",
		"concurrency = 99",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for concurrency=99")
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Provider.APIKey = "k"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutputDir = filepath.Join(base, "out")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.OutputDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("directory %s missing: %v", dir, err)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[provider]") {
		t.Error("sample config missing provider section")
	}
}
