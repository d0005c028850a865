package transit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ParseMode selects how a response body is interpreted.
type ParseMode int

const (
	// ParseAuto dispatches on the response Content-Type.
	ParseAuto ParseMode = iota
	ParseJSON
	ParseBlob
	ParseText
	// parseNone marks an empty or 204 response; never set by callers.
	parseNone
)

// RequestOptions is per-call configuration. A nil *RequestOptions means all
// defaults. Options are read once at call start and never mutated.
type RequestOptions struct {
	// NoAuth skips Authorization header injection.
	NoAuth bool

	// Idempotency attaches a fresh Idempotency-Key to mutating verbs.
	// It has no effect on GET/HEAD beyond a logged warning.
	Idempotency bool

	// Headers are merged into the request; caller values win over defaults.
	Headers map[string]string

	// Timeout overrides the client default for this call.
	Timeout time.Duration

	// ParseAs overrides Content-Type autodetection.
	ParseAs ParseMode

	// NoRetry disables transport-level retry for this call.
	NoRetry bool
}

// TokenSource supplies the bearer token. It is consulted fresh on every
// request, so rotation takes effect on the very next call. An empty token
// simply omits the Authorization header.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string { return f() }

// StaticToken is a TokenSource returning a fixed value.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

// Result is a parsed successful response.
type Result struct {
	Status    int
	Header    http.Header
	RequestID string

	kind ParseMode
	body []byte
}

// Bytes returns the raw body. For blob responses this is the payload.
func (r *Result) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.body
}

// Text returns the body as a string.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return string(r.body)
}

// Decode unmarshals the response payload into out. A 204 or empty body
// leaves out untouched. For blob and text payloads out must be *[]byte or
// *string respectively.
func (r *Result) Decode(out any) error {
	if r == nil || out == nil || r.kind == parseNone {
		return nil
	}
	switch r.kind {
	case ParseBlob:
		p, ok := out.(*[]byte)
		if !ok {
			return fmt.Errorf("transit: blob response requires *[]byte target, got %T", out)
		}
		*p = r.body
		return nil
	case ParseText:
		switch p := out.(type) {
		case *string:
			*p = string(r.body)
			return nil
		case *[]byte:
			*p = r.body
			return nil
		default:
			return fmt.Errorf("transit: text response requires *string target, got %T", out)
		}
	default:
		return json.Unmarshal(r.body, out)
	}
}

func firstOptions(opts []*RequestOptions) *RequestOptions {
	for _, o := range opts {
		if o != nil {
			return o
		}
	}
	return &RequestOptions{}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func isSafe(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
