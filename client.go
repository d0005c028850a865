package transit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/daconrilcy/horoscope-transit/internal/backoff"
)

// DefaultRetryExemptPaths lists endpoints never retried even on GET: a
// replayed checkout-session call can duplicate payment side effects upstream.
var DefaultRetryExemptPaths = []string{"/v1/billing/checkout"}

// Client is the HTTP transport for the horoscope backend. It owns header
// construction, auth and idempotency-key injection, the timeout/cancellation
// race, content-type parsing, error classification, event emission and the
// bounded retry of idempotent reads. A single Client is safe for concurrent
// use.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	requestSource  string
	timeout        time.Duration
	maxRetries     int
	backoff        backoff.Exponential
	tokens         TokenSource
	onUnauthorized func()
	loginPath      string
	retryExempt    map[string]struct{}
	bus            *Bus
	authGuard      *unauthorizedGuard
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	retryBudget    *RetryBudget
	metrics        *MetricsCollector
	logger         Logger

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:    &http.Client{},
		requestSource: "go-client",
		timeout:       15 * time.Second,
		maxRetries:    2,
		backoff: backoff.Exponential{
			Initial:    500 * time.Millisecond,
			Max:        10 * time.Second,
			Multiplier: 2.0,
		},
		loginPath:   "/v1/auth/login",
		retryExempt: make(map[string]struct{}),
		bus:         NewBus(),
		authGuard:   newUnauthorizedGuard(defaultUnauthorizedWindow),
	}
	for _, path := range DefaultRetryExemptPaths {
		client.retryExempt[path] = struct{}{}
	}

	for _, option := range options {
		option(client)
	}

	if client.bus != nil {
		client.bus.SetLogger(client.logger)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Events exposes the client's event bus so collaborators can subscribe to
// transport-level signals.
func (c *Client) Events() *Bus {
	return c.bus
}

// ResetUnauthorizedWindow clears the session-expired debounce window.
// Test isolation only.
func (c *Client) ResetUnauthorizedWindow() {
	c.authGuard.reset()
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// Get performs a GET and decodes the response into out (ignored when nil).
func (c *Client) Get(ctx context.Context, path string, out any, opts ...*RequestOptions) error {
	res, err := c.Do(ctx, http.MethodGet, path, nil, opts...)
	if err != nil {
		return err
	}
	return res.Decode(out)
}

// Head performs a HEAD request.
func (c *Client) Head(ctx context.Context, path string, opts ...*RequestOptions) error {
	_, err := c.Do(ctx, http.MethodHead, path, nil, opts...)
	return err
}

// Post performs a POST with a JSON-encoded body and decodes the response
// into out.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...*RequestOptions) error {
	res, err := c.Do(ctx, http.MethodPost, path, body, opts...)
	if err != nil {
		return err
	}
	return res.Decode(out)
}

// Put performs a PUT with a JSON-encoded body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...*RequestOptions) error {
	res, err := c.Do(ctx, http.MethodPut, path, body, opts...)
	if err != nil {
		return err
	}
	return res.Decode(out)
}

// Patch performs a PATCH with a JSON-encoded body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...*RequestOptions) error {
	res, err := c.Do(ctx, http.MethodPatch, path, body, opts...)
	if err != nil {
		return err
	}
	return res.Decode(out)
}

// Delete performs a DELETE and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...*RequestOptions) error {
	res, err := c.Do(ctx, http.MethodDelete, path, nil, opts...)
	if err != nil {
		return err
	}
	return res.Decode(out)
}

// Do executes one logical call: build, attempt, classify, and retry eligible
// reads on network failure. path may be absolute (starting with http) or
// relative to the configured base URL.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...*RequestOptions) (*Result, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	opt := firstOptions(opts)
	rawURL := c.resolveURL(path)
	endpoint := endpointFromURL(rawURL)

	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		res, err := c.attempt(ctx, method, rawURL, payload, opt)
		if err == nil {
			return res, nil
		}
		if !c.shouldRetry(method, rawURL, opt, err, attempt) {
			return nil, err
		}

		delay := c.backoff.Delay(attempt)
		if c.logger != nil {
			c.logger.Debug("scheduling retry", "method", method, "url", rawURL, "attempt", attempt+1, "backoff", delay.String())
		}
		c.metrics.RecordRetry(method, endpoint, attempt+1)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &NetworkError{Reason: ReasonAborted, Message: "cancelled during retry backoff", Cause: ctx.Err()}
		}
	}
}

func (c *Client) shouldRetry(method, rawURL string, opt *RequestOptions, err error, attempt int) bool {
	if attempt >= c.maxRetries {
		return false
	}
	if !isSafe(method) {
		return false
	}
	if opt.NoRetry {
		return false
	}
	if !IsRetryable(err) {
		return false
	}
	if c.isRetryExempt(rawURL) {
		return false
	}
	if c.retryBudget != nil && !c.retryBudget.Allow() {
		if c.logger != nil {
			c.logger.Warn("retry budget exhausted", "method", method, "url", rawURL)
		}
		return false
	}
	return true
}

func (c *Client) isRetryExempt(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, exempt := c.retryExempt[u.Path]
	return exempt
}

// attempt runs a single request lifecycle: headers, fetch under the
// timeout/cancellation race, parse, classify. Every attempt emits a start
// trace event and exactly one of end/error.
func (c *Client) attempt(ctx context.Context, method, rawURL string, payload []byte, opt *RequestOptions) (*Result, error) {
	start := time.Now()
	endpoint := endpointFromURL(rawURL)

	timeout := c.timeout
	if opt.Timeout > 0 {
		timeout = opt.Timeout
	}
	// The internal deadline is layered on the caller's context; after a
	// failure, which context tripped decides timeout vs aborted.
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("transit: build request: %w", err)
	}
	c.setHeaders(req, opt)

	traceID := uuid.NewString()
	c.trace(TraceEvent{
		ID:      traceID,
		Ts:      start,
		Phase:   PhaseStart,
		Method:  method,
		URL:     rawURL,
		Headers: sanitizeHeaders(req.Header),
	})
	c.metrics.RecordRequestStart(method, endpoint)
	defer c.metrics.RecordRequestEnd(method, endpoint)

	resp, err := c.execute(req)
	if err != nil {
		duration := time.Since(start)
		c.metrics.RecordRequest(method, endpoint, 0, duration)

		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCircuitOpen) {
			c.metrics.RecordError("Local", method, endpoint)
			c.traceDone(traceID, method, rawURL, PhaseError, 0, "", duration)
			return nil, err
		}

		nerr := classifyTransport(ctx, attemptCtx, err)
		c.metrics.RecordError("Network", method, endpoint)
		c.traceDone(traceID, method, rawURL, PhaseError, 0, "", duration)
		return nil, nerr
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		duration := time.Since(start)
		nerr := classifyTransport(ctx, attemptCtx, readErr)
		c.metrics.RecordError("Network", method, endpoint)
		c.metrics.RecordRequest(method, endpoint, 0, duration)
		c.traceDone(traceID, method, rawURL, PhaseError, 0, "", duration)
		return nil, nerr
	}

	requestID := ExtractRequestID(resp.Header, raw)
	duration := time.Since(start)
	c.metrics.RecordRequest(method, endpoint, resp.StatusCode, duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := c.classifyHTTP(method, rawURL, resp, raw, requestID)
		c.metrics.RecordError("HTTP", method, endpoint)
		c.traceDone(traceID, method, rawURL, PhaseError, resp.StatusCode, requestID, duration)
		return nil, apiErr
	}

	kind, perr := parseBody(opt.ParseAs, resp.StatusCode, resp.Header, raw, requestID)
	if perr != nil {
		c.metrics.RecordError("Parse", method, endpoint)
		c.traceDone(traceID, method, rawURL, PhaseError, resp.StatusCode, requestID, duration)
		return nil, perr
	}

	c.traceDone(traceID, method, rawURL, PhaseEnd, resp.StatusCode, requestID, duration)
	return &Result{
		Status:    resp.StatusCode,
		Header:    resp.Header,
		RequestID: requestID,
		kind:      kind,
		body:      raw,
	}, nil
}

func (c *Client) setHeaders(req *http.Request, opt *RequestOptions) {
	req.Header.Set("X-Client-Version", Version)
	req.Header.Set("X-Request-Source", c.requestSource)

	for k, v := range opt.Headers {
		req.Header.Set(k, v)
	}

	if req.Header.Get("Content-Type") == "" && opt.ParseAs != ParseBlob && opt.ParseAs != ParseText {
		req.Header.Set("Content-Type", "application/json")
	}

	// The token is read fresh on every call so rotation takes effect on the
	// very next request. A missing token is not an error at this layer.
	if !opt.NoAuth && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if opt.Idempotency {
		if isMutating(req.Method) {
			if req.Header.Get("Idempotency-Key") == "" {
				req.Header.Set("Idempotency-Key", uuid.NewString())
			}
		} else if c.logger != nil {
			c.logger.Warn("idempotency key requested on safe method; not injected",
				"method", req.Method, "url", req.URL.String())
		}
	}
}

// errServerStatus marks 5xx responses as failures inside the circuit
// breaker while still handing the response back to the pipeline.
var errServerStatus = errors.New("transit: server status")

func (c *Client) execute(req *http.Request) (*http.Response, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, errServerStatus
		}
		return resp, nil
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrCircuitOpen
	case errors.Is(err, errServerStatus):
		return v.(*http.Response), nil
	case err != nil:
		return nil, err
	default:
		return v.(*http.Response), nil
	}
}

// classifyTransport decides which cancellation path won. The caller's
// context tripping means aborted; our own deadline means timeout; a
// transport error with neither context done means the server was
// unreachable.
func classifyTransport(callerCtx, attemptCtx context.Context, err error) *NetworkError {
	switch {
	case callerCtx.Err() != nil:
		return &NetworkError{Reason: ReasonAborted, Message: "request cancelled", Cause: err}
	case attemptCtx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded):
		return &NetworkError{Reason: ReasonTimeout, Message: "request timed out", Cause: err}
	default:
		return &NetworkError{Reason: ReasonOffline, Message: "could not reach server", Cause: err}
	}
}

func (c *Client) resolveURL(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) trace(ev TraceEvent) {
	if c.bus != nil {
		c.bus.Emit(EventAPIRequest, ev)
	}
}

func (c *Client) traceDone(id, method, rawURL string, phase TracePhase, status int, requestID string, duration time.Duration) {
	c.trace(TraceEvent{
		ID:         id,
		Ts:         time.Now(),
		Phase:      phase,
		Method:     method,
		URL:        rawURL,
		Status:     status,
		RequestID:  requestID,
		DurationMs: duration.Milliseconds(),
	})
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transit: encode request body: %w", err)
		}
		return payload, nil
	}
}

var secretHeaderPattern = regexp.MustCompile(`(?i)secret|password`)

// sanitizeHeaders copies headers for trace events, dropping Authorization
// and anything that looks like a credential.
func sanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if strings.EqualFold(name, "Authorization") || secretHeaderPattern.MatchString(name) {
			continue
		}
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}

func endpointFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}

	endpoint := u.Host
	if u.Path != "" && u.Path != "/" {
		endpoint += u.Path
	} else {
		endpoint += "/"
	}
	return endpoint
}
