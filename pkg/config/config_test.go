package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default level info, got %q", cfg.Logging.Level)
	}
	if cfg.Server.DescriptorCap != 1024 {
		t.Fatalf("expected default descriptor cap 1024, got %d", cfg.Server.DescriptorCap)
	}
	if cfg.Diagnostics.Enabled {
		t.Fatalf("expected diagnostics disabled by default")
	}
	if cfg.Logging.MaxGenerations != 3 {
		t.Fatalf("expected default maxGenerations 3, got %d", cfg.Logging.MaxGenerations)
	}
}

func TestLoadRejectsZeroMaxGenerationsWithFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "n2kd.toml")
	if err := os.WriteFile(path, []byte(`[logging]
filePath = "n2kd.log"
maxGenerations = 0
`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(path, Default()); err == nil {
		t.Fatalf("expected error for maxGenerations=0 with filePath set")
	}
}

func TestLoadRejectsDescriptorCapAboveFdSetsize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "n2kd.toml")
	if err := os.WriteFile(path, []byte(`[server]
descriptorCap = 2048
`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(path, Default()); err == nil {
		t.Fatalf("expected error for descriptorCap above %d", MaxDescriptorCap)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "n2kd.toml")
	toml := `
[logging]
level = "debug"
filePath = "n2kd.log"

[diagnostics]
enabled = true
tracePath = "trace.db"

[server]
descriptorCap = 256
`
	if err := os.WriteFile(path, []byte(toml), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path, Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Server.DescriptorCap != 256 {
		t.Fatalf("expected descriptor cap 256, got %d", cfg.Server.DescriptorCap)
	}
	if !cfg.Diagnostics.Enabled {
		t.Fatalf("expected diagnostics enabled")
	}
}

func TestLoadRejectsInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "n2kd.toml")
	if err := os.WriteFile(path, []byte(`[logging]
level = "verbose"
`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(path, Default()); err == nil {
		t.Fatalf("expected error for invalid logging level")
	}
}

func TestResolveFallsBackToDefaultWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	os.Unsetenv(envVar)

	cfg, err := Resolve(0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Server.DescriptorCap != 1024 {
		t.Fatalf("expected default descriptor cap, got %d", cfg.Server.DescriptorCap)
	}
}

func TestResolveHonorsDescriptorCapOverride(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)
	os.Unsetenv(envVar)

	cfg, err := Resolve(64)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Server.DescriptorCap != 64 {
		t.Fatalf("expected override descriptor cap 64, got %d", cfg.Server.DescriptorCap)
	}
}

func TestResolveReadsEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	os.WriteFile(path, []byte(`[server]
descriptorCap = 42
`), 0o600)
	os.Setenv(envVar, path)
	defer os.Unsetenv(envVar)

	cfg, err := Resolve(0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Server.DescriptorCap != 42 {
		t.Fatalf("expected descriptor cap 42 from env path, got %d", cfg.Server.DescriptorCap)
	}
}
