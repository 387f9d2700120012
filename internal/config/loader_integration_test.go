package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// These tests exercise the full pipeline: defaults < YAML < ENV < flags.

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFrom_FullHierarchy(t *testing.T) {
	path := writeYAML(t, `
server:
  port: "9090"
logging:
  level: "debug"
`)
	t.Setenv("ACTIONFORGE_PORT", "7070")
	t.Setenv("ACTIONFORGE_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadFrom_EnvInvalidValues(t *testing.T) {
	path := writeYAML(t, "")

	t.Setenv("ACTIONFORGE_PG_MAX_CONNS", "notanumber")
	t.Setenv("ACTIONFORGE_MODEL_TIMEOUT", "invalid-duration")
	t.Setenv("ACTIONFORGE_RATE_RPS", "abc")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("invalid int env should be ignored: got max_conns %d, want 10", cfg.Postgres.MaxConns)
	}
	if cfg.Generation.Timeout.String() != "30s" {
		t.Errorf("invalid duration env should be ignored: got %v, want 30s", cfg.Generation.Timeout)
	}
	if cfg.Rate.RequestsPerSecond != 5 {
		t.Errorf("invalid float env should be ignored: got %v, want 5", cfg.Rate.RequestsPerSecond)
	}
}

func TestLoadFrom_MissingYAMLFile(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/to/config.yaml")
	if err != nil {
		t.Fatalf("missing YAML should not error, got %v", err)
	}
	if cfg.Server.Port == "" {
		t.Error("expected a default port")
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	path := writeYAML(t, "server: [unclosed")
	_, err := LoadFrom(path)
	if err == nil || !strings.Contains(err.Error(), "config yaml") {
		t.Fatalf("expected yaml error, got %v", err)
	}
}

func TestLoadFrom_ValidationFailure(t *testing.T) {
	path := writeYAML(t, `
orchestrator:
  max_parallel: 0
`)
	_, err := LoadFrom(path)
	if err == nil || !strings.Contains(err.Error(), "orchestrator.max_parallel") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadWithFlags_FlagsWin(t *testing.T) {
	path := writeYAML(t, `
server:
  port: "9090"
generation:
  model: "from-yaml"
`)
	t.Setenv("ACTIONFORGE_PORT", "7070")

	cfg, err := LoadWithFlags([]string{"-c", path, "--port", "6060", "--model", "from-flag"})
	if err != nil {
		t.Fatalf("LoadWithFlags: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("flag should override env: got %q", cfg.Server.Port)
	}
	if cfg.Generation.Model != "from-flag" {
		t.Errorf("flag should override YAML: got %q", cfg.Generation.Model)
	}
}
