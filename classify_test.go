package transit

import (
	"testing"
	"time"
)

func TestParseRetryAfterSeconds(t *testing.T) {
	cases := []struct {
		value string
		want  int
	}{
		{"", 0},
		{"30", 30},
		{" 5 ", 5},
		{"0", 0},
		{"-3", 0},
		{"7200", 3600}, // capped at one hour
		{"garbage", 0},
	}

	for _, tc := range cases {
		if got := parseRetryAfter(tc.value); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(90 * time.Second).UTC().Format(time.RFC1123)
	got := parseRetryAfter(future)
	if got < 85 || got > 90 {
		t.Errorf("parseRetryAfter(HTTP-date) = %d, want ~90", got)
	}

	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC1123)
	if got := parseRetryAfter(past); got != 0 {
		t.Errorf("parseRetryAfter(past date) = %d, want 0", got)
	}
}

func TestServerMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message field", `{"message":"bad input"}`, "bad input"},
		{"error field", `{"error":"broken"}`, "broken"},
		{"detail field", `{"detail":"missing"}`, "missing"},
		{"message wins", `{"error":"e","message":"m"}`, "m"},
		{"non-string message skipped", `{"message":{"nested":true},"error":"e"}`, "e"},
		{"plain text body", "teapot refused", "teapot refused"},
		{"empty", "", ""},
		{"json without message", `{"ok":false}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := serverMessage([]byte(tc.body)); got != tc.want {
				t.Errorf("serverMessage = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidationDetails(t *testing.T) {
	body := []byte(`{"errors":{"email":["invalid"]},"message":"validation failed"}`)
	details := validationDetails(body)
	m, ok := details.(map[string]any)
	if !ok {
		t.Fatalf("details = %T, want map", details)
	}
	if _, ok := m["email"]; !ok {
		t.Error("email field missing from details")
	}

	// Whole body fallback when no errors/details field exists.
	body = []byte(`{"field":"dob","problem":"future date"}`)
	details = validationDetails(body)
	m, ok = details.(map[string]any)
	if !ok {
		t.Fatalf("details = %T, want map", details)
	}
	if m["field"] != "dob" {
		t.Errorf("fallback details = %v", m)
	}

	if got := validationDetails([]byte("not json")); got != nil {
		t.Errorf("validationDetails(non-json) = %v, want nil", got)
	}
}
