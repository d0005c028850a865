package transit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
base_url: https://api.example.com/
request_source: ios
timeout_ms: 8000
max_retries: 1
initial_backoff_ms: 250
login_path: /v1/session
retry_exempt_paths:
  - /v1/billing/checkout
  - /v1/billing/portal
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.BaseURL != "https://api.example.com/" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.TimeoutMs != 8000 {
		t.Errorf("TimeoutMs = %d", cfg.TimeoutMs)
	}
	if len(cfg.RetryExemptPaths) != 2 {
		t.Errorf("RetryExemptPaths = %v", cfg.RetryExemptPaths)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "base_url: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfigRequiresBaseURL(t *testing.T) {
	path := writeConfig(t, "timeout_ms: 5000")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for missing base_url")
	}
}

func TestConfigOptionsBridge(t *testing.T) {
	cfg := &Config{
		BaseURL:          "https://api.example.com/",
		RequestSource:    "android",
		TimeoutMs:        5000,
		MaxRetries:       1,
		InitialBackoffMs: 100,
		LoginPath:        "/v1/session",
		RetryExemptPaths: []string{"/v1/billing/portal"},
	}

	client := New(cfg.Options()...)
	if !client.IsValid() {
		t.Fatalf("client invalid: %v", client.ValidationError())
	}
	if client.baseURL != "https://api.example.com" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
	if client.requestSource != "android" {
		t.Errorf("requestSource = %q", client.requestSource)
	}
	if client.timeout != 5*time.Second {
		t.Errorf("timeout = %v", client.timeout)
	}
	if client.maxRetries != 1 {
		t.Errorf("maxRetries = %d", client.maxRetries)
	}
	if client.loginPath != "/v1/session" {
		t.Errorf("loginPath = %q", client.loginPath)
	}
	if _, ok := client.retryExempt["/v1/billing/portal"]; !ok {
		t.Error("retry-exempt path not applied")
	}
	if _, ok := client.retryExempt["/v1/billing/checkout"]; ok {
		t.Error("defaults should be replaced, not merged")
	}
}
