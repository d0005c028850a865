package transit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	client := New(WithBaseURL("https://api.example.com"))

	if client == nil {
		t.Fatal("New() returned nil")
	}
	if !client.IsValid() {
		t.Fatalf("default configuration invalid: %v", client.ValidationError())
	}
	if client.timeout != 15*time.Second {
		t.Errorf("timeout = %v, want 15s", client.timeout)
	}
	if client.maxRetries != 2 {
		t.Errorf("maxRetries = %d, want 2", client.maxRetries)
	}
	if client.backoff.Initial != 500*time.Millisecond {
		t.Errorf("initial backoff = %v, want 500ms", client.backoff.Initial)
	}
	if _, ok := client.retryExempt["/v1/billing/checkout"]; !ok {
		t.Error("checkout endpoint missing from default retry-exempt set")
	}
}

func TestWithBaseURLStripsTrailingSlashes(t *testing.T) {
	client := New(WithBaseURL("https://api.example.com///"))
	if client.baseURL != "https://api.example.com" {
		t.Errorf("baseURL = %q", client.baseURL)
	}

	if got := client.resolveURL("v1/profile"); got != "https://api.example.com/v1/profile" {
		t.Errorf("resolveURL = %q", got)
	}
	if got := client.resolveURL("/v1/profile"); got != "https://api.example.com/v1/profile" {
		t.Errorf("resolveURL = %q", got)
	}
}

func TestWithRetryExemptPathsReplacesDefaults(t *testing.T) {
	client := New(
		WithBaseURL("https://api.example.com"),
		WithRetryExemptPaths("/v1/billing/checkout", "/v1/billing/portal"),
	)

	if !client.isRetryExempt("https://api.example.com/v1/billing/portal") {
		t.Error("configured path not exempt")
	}
	if client.isRetryExempt("https://api.example.com/v1/profile") {
		t.Error("unrelated path reported exempt")
	}
}

func TestValidateConfiguration(t *testing.T) {
	cases := []struct {
		name    string
		options []Option
		problem string
	}{
		{"negative timeout", []Option{WithBaseURL("https://x.test"), WithTimeout(-time.Second)}, "timeout"},
		{"negative retries", []Option{WithBaseURL("https://x.test"), WithMaxRetries(-1)}, "maxRetries"},
		{"zero backoff", []Option{WithBaseURL("https://x.test"), WithInitialBackoff(0)}, "backoff"},
		{"bad scheme", []Option{WithBaseURL("ftp://x.test")}, "baseURL"},
		{"nil http client", []Option{WithBaseURL("https://x.test"), WithHTTPClient(nil)}, "http client"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := New(tc.options...)
			if client.IsValid() {
				t.Fatal("expected invalid configuration")
			}
			if !strings.Contains(client.ValidationError().Error(), tc.problem) {
				t.Errorf("ValidationError = %v, want mention of %q", client.ValidationError(), tc.problem)
			}
		})
	}
}

func TestInvalidConfigurationFailsCalls(t *testing.T) {
	client := New(WithBaseURL("https://x.test"), WithTimeout(-time.Second))

	err := client.Get(context.Background(), "/v1/profile", nil)
	if err == nil {
		t.Fatal("expected error from invalid client")
	}
	if !errors.Is(err, client.ValidationError()) {
		t.Errorf("Get error = %v, want validation error", err)
	}
}
