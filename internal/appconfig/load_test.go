package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Backend.BaseURL != def.Backend.BaseURL {
		t.Fatalf("expected default base url, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Verify.CountdownSeconds != 3 {
		t.Fatalf("expected 3 second countdown, got %d", cfg.Verify.CountdownSeconds)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 9
backend:
  base_url: http://localhost:8000
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://localhost:8000
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsInvalidBaseURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
backend:
  base_url: localhost
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "backend.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestLoadRejectsHalfCoordinates(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
geo:
  latitude: "59.33"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "set together") {
		t.Fatalf("expected coordinate error, got %v", err)
	}
}

func TestLoadReadsFileValues(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
backend:
  base_url: https://api.hipposync.com
chat:
  model: gpt-4o
  temperature: 0.2
geo:
  latitude: "59.33"
  longitude: "18.06"
  timezone: Europe/Stockholm
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://api.hipposync.com" {
		t.Fatalf("unexpected base url %q", cfg.Backend.BaseURL)
	}
	settings := cfg.ChatSettings()
	if settings.Model != "gpt-4o" || settings.Temperature != 0.2 {
		t.Fatalf("unexpected chat settings %+v", settings)
	}
	if cfg.Geo.Timezone != "Europe/Stockholm" {
		t.Fatalf("unexpected timezone %q", cfg.Geo.Timezone)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HIPPOSYNC_BACKEND_BASE_URL", "http://env.local:9000")
	path := writeConfig(t, `
config_version: 1
backend:
  base_url: http://file.local:8000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://env.local:9000" {
		t.Fatalf("expected env override, got %q", cfg.Backend.BaseURL)
	}
}

func TestLoadDotEnvNextToConfig(t *testing.T) {
	const key = "HIPPOSYNC_VERIFY_REDIRECT_URL"
	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s already set", key)
	}
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	path := writeConfig(t, "config_version: 1\n")
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte(key+"=https://app.hipposync.com/verify\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Verify.RedirectURL != "https://app.hipposync.com/verify" {
		t.Fatalf("expected .env value, got %q", cfg.Verify.RedirectURL)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("unexpected path %q", written)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("load written default: %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$MISSING_HIPPOSYNC_VAR")
	if value != "bar/$MISSING_HIPPOSYNC_VAR" {
		t.Fatalf("unexpected expansion %q", value)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimLeft(body, "\n")), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
