package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volctl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Library.Backend != BackendNative {
		t.Errorf("expected backend=native, got %s", cfg.Library.Backend)
	}
	if cfg.Library.MultiInstance {
		t.Error("expected multi_instance=false")
	}
	if cfg.Listener.Interval != 500*time.Millisecond {
		t.Errorf("expected interval=500ms, got %v", cfg.Listener.Interval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_WithoutEnvReturnsDefault(t *testing.T) {
	t.Setenv(EnvConfig, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Relay.Listen != ":8080" {
		t.Errorf("expected default listen address, got %s", cfg.Relay.Listen)
	}
}

func TestLoad_WithEnv(t *testing.T) {
	path := writeConfig(t, `
library:
  directory: ${VOLCTL_TEST_DIR}/lib
  name: testRunnerVolCtl
  multi_instance: true
listener:
  interval: 250ms
relay:
  url: ws://relay.example:9000/ws
  volume_change_rate: 5
log:
  debug: true
`)
	t.Setenv(EnvConfig, path)
	t.Setenv("VOLCTL_TEST_DIR", "/srv/volctl")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Library.Directory != "/srv/volctl/lib" {
		t.Errorf("expected expanded directory, got %s", cfg.Library.Directory)
	}
	if cfg.Library.Name != "testRunnerVolCtl" {
		t.Errorf("expected name=testRunnerVolCtl, got %s", cfg.Library.Name)
	}
	if !cfg.Library.MultiInstance {
		t.Error("expected multi_instance=true")
	}
	if cfg.Listener.Interval != 250*time.Millisecond {
		t.Errorf("expected interval=250ms, got %v", cfg.Listener.Interval)
	}
	if cfg.Relay.URL != "ws://relay.example:9000/ws" {
		t.Errorf("unexpected relay url %s", cfg.Relay.URL)
	}
	if cfg.Relay.VolumeChangeRate != 5 {
		t.Errorf("expected volume_change_rate=5, got %d", cfg.Relay.VolumeChangeRate)
	}
	if !cfg.Log.Debug {
		t.Error("expected debug=true")
	}

	// Unset keys keep their defaults.
	if cfg.Library.Backend != BackendNative {
		t.Errorf("expected default backend, got %s", cfg.Library.Backend)
	}
	if cfg.Relay.Listen != ":8080" {
		t.Errorf("expected default listen address, got %s", cfg.Relay.Listen)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "library: [unterminated")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFile_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
library:
  backend: pulseaudio
listener:
  interval: 0s
relay:
  volume_change_rate: 0
`)
	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"library.backend", "listener.interval", "relay.volume_change_rate"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}
