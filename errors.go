package transit

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Sentinel errors for the optional reliability layers.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a request.
	ErrCircuitOpen = errors.New("transit: circuit open")

	// ErrRateLimited is returned when a request is denied by the local rate limiter.
	ErrRateLimited = errors.New("transit: rate limited")
)

// NetworkReason identifies why a request failed before an HTTP response arrived.
type NetworkReason string

const (
	ReasonTimeout NetworkReason = "timeout"
	ReasonOffline NetworkReason = "offline"
	ReasonAborted NetworkReason = "aborted"
)

// APIError represents a completed HTTP exchange that the server rejected.
// Message is always safe to surface to end users; DebugMessage carries the
// raw server text for logs and support tooling only. Details is populated
// for 400/422 responses with field-level validation errors.
type APIError struct {
	Message      string
	Status       int
	Code         string
	RequestID    string
	Details      any
	DebugMessage string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code %s)", msg, e.Code)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// NetworkError represents a transport failure with no HTTP response.
// It carries no status code because there was nothing on the wire to read.
type NetworkError struct {
	Reason  NetworkReason
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Cause != nil {
		return fmt.Sprintf("network error (%s): %s (%v)", e.Reason, msg, e.Cause)
	}
	return fmt.Sprintf("network error (%s): %s", e.Reason, msg)
}

// Unwrap returns the underlying cause.
func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares reasons for errors.Is.
func (e *NetworkError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*NetworkError); ok {
		return e.Reason == t.Reason
	}
	return false
}

// IsRetryable reports whether an error is eligible for transport-level retry.
// Only network failures qualify; a server that responded, however badly, is
// never retried by this layer.
func IsRetryable(err error) bool {
	var nerr *NetworkError
	return errors.As(err, &nerr)
}

var requestIDHeaders = []string{"x-request-id", "x-trace-id", "x-correlation-id"}

var requestIDFields = []string{"request_id", "trace_id", "requestId", "traceId"}

// ExtractRequestID pulls a correlation id from response headers, falling back
// to well-known body fields. Header-sourced ids win over body-sourced ones.
// Returns the empty string when none is present; never errors.
func ExtractRequestID(header http.Header, body []byte) string {
	for _, name := range requestIDHeaders {
		if v := header.Get(name); v != "" {
			return v
		}
	}
	if len(body) == 0 {
		return ""
	}
	for _, field := range requestIDFields {
		if v := gjson.GetBytes(body, field); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
