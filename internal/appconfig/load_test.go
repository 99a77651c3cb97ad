package appconfig

import (
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

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scripts.Ext != ".js" {
		t.Fatalf("expected default extension, got %q", cfg.Scripts.Ext)
	}
	if cfg.HTTP.Addr != ":27590" {
		t.Fatalf("expected default addr, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 99
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsExtensionWithoutDot(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
scripts:
  ext: js
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "scripts.ext") {
		t.Fatalf("expected scripts.ext error, got %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
scripts_root: /tmp/orbyte-scripts
exec:
  timeout_seconds: 30
http:
  addr: ":9000"
  panel_token: sekrit
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ScriptsRoot != "/tmp/orbyte-scripts" {
		t.Fatalf("scripts_root not applied: %q", cfg.ScriptsRoot)
	}
	if cfg.Exec.TimeoutSeconds != 30 {
		t.Fatalf("timeout not applied: %d", cfg.Exec.TimeoutSeconds)
	}
	if cfg.HTTP.Addr != ":9000" || cfg.HTTP.PanelToken != "sekrit" {
		t.Fatalf("http config not applied: %+v", cfg.HTTP)
	}
}

func TestLoadRejectsBasePathURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
http:
  base_path: https://example.com/panel
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "base_path") {
		t.Fatalf("expected base_path error, got %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := WriteDefault(path, false); err != nil {
		t.Fatalf("write default: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}
