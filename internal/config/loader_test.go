package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "fs" || cfg.Storage.FSRoot != "./data" {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log defaults %+v", cfg.Log)
	}
	if !cfg.CreateMissing() {
		t.Fatalf("missing resources should be created by default")
	}
	if got := cfg.ResourceKey("patchnotes"); got != "patchnotes.json" {
		t.Fatalf("unexpected default resource key %q", got)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `storage:
  driver: sqlite
  sqlite_path: /tmp/tracker.db
  create_missing: false
resources:
  projects: archive/projects.json
log:
  level: debug
  format: console
jwt:
  secret: hunter2
  issuer: tracker
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "/tmp/tracker.db" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.CreateMissing() {
		t.Fatalf("create_missing: false should be honoured")
	}
	if cfg.ResourceKey("projects") != "archive/projects.json" || cfg.ResourceKey("tasks") != "tasks.json" {
		t.Fatalf("unexpected resource keys")
	}
	if cfg.Get("jwt.issuer") != "tracker" || cfg.JWT.Secret.Value() != "hunter2" {
		t.Fatalf("unexpected jwt %+v", cfg.JWT)
	}
	if cfg.Get("storage.unknown") != "" {
		t.Fatalf("unset keys should be empty")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: sqlite\n")
	t.Setenv("PROJECTTRACKER_STORAGE_DRIVER", "memory")
	t.Setenv("PROJECTTRACKER_RESOURCES_USERS", "people.json")
	t.Setenv("PROJECTTRACKER_METRICS_ENABLED", "true")
	t.Setenv("STORAGE_DRIVER", "s3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("env should override file, got %q", cfg.Storage.Driver)
	}
	if cfg.ResourceKey("users") != "people.json" {
		t.Fatalf("unexpected users key %q", cfg.ResourceKey("users"))
	}
	if !cfg.Metrics.Enabled {
		t.Fatalf("metrics should be enabled from env")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"driver":    "storage:\n  driver: floppy\n",
		"s3 bucket": "storage:\n  driver: s3\n",
		"format":    "log:\n  format: xml\n",
		"level":     "log:\n  level: loud\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit file")
	}
	if _, err := Load(writeConfig(t, "storage: [unterminated")); err == nil {
		t.Fatalf("expected parse error")
	}
	big := writeConfig(t, "# "+strings.Repeat("x", maxConfigFileSize+1))
	if _, err := Load(big); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"PROJECTTRACKER_STORAGE_FS_ROOT":       "storage.fs_root",
		"PROJECTTRACKER_LOG_LEVEL":             "log.level",
		"PROJECTTRACKER_RESOURCES_PATCHNOTES":  "resources.patchnotes",
		"PROJECTTRACKER_DEBUG":                 "debug",
		"HOME":                                 "",
	}
	for in, want := range cases {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("hunter2")
	if s.String() != "[REDACTED]" || fmt.Sprintf("%#v", s) != "Secret([REDACTED])" {
		t.Fatalf("secret leaked through formatting")
	}
	b, err := s.MarshalJSON()
	if err != nil || strings.Contains(string(b), "hunter2") {
		t.Fatalf("secret leaked through JSON: %s", b)
	}
	if txt, _ := s.MarshalText(); string(txt) != "[REDACTED]" {
		t.Fatalf("secret leaked through text encoding: %s", txt)
	}
	if Secret("").String() != "" || Secret("").IsSet() || !s.IsSet() {
		t.Fatalf("empty secret should format empty and report unset")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	var nilCfg *Config
	if nilCfg.Get("x") != "" {
		t.Fatalf("nil config lookup should be empty")
	}
}
