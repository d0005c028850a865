package transit

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/daconrilcy/horoscope-transit/internal/backoff"
)

// Option represents a configuration option.
type Option func(*Client)

// WithBaseURL sets the backend base URL. Trailing slashes are stripped so
// path joining stays predictable.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRequestSource sets the X-Request-Source header value.
func WithRequestSource(source string) Option {
	return func(c *Client) {
		c.requestSource = source
	}
}

// WithTimeout sets the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTokenSource sets the bearer token provider consulted on every request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithOnUnauthorized installs a callback invoked (debounced, at most once
// per window) when a session-expired signal fires. Meant for router-level
// redirects; the bus event still fires independently of this callback.
func WithOnUnauthorized(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithLoginPath marks the login endpoint; 401s from it never trigger the
// OnUnauthorized callback.
func WithLoginPath(path string) Option {
	return func(c *Client) {
		c.loginPath = path
	}
}

// WithRetryExemptPaths replaces the set of paths never retried even on GET.
func WithRetryExemptPaths(paths ...string) Option {
	return func(c *Client) {
		c.retryExempt = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			c.retryExempt[p] = struct{}{}
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts for eligible reads.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithInitialBackoff sets the delay before the first retry; subsequent
// delays double.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff.Initial = d
	}
}

// WithBackoff replaces the whole backoff schedule.
func WithBackoff(b backoff.Exponential) Option {
	return func(c *Client) {
		c.backoff = b
	}
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBus replaces the client's event bus, letting several clients share one.
func WithBus(bus *Bus) Option {
	return func(c *Client) {
		c.bus = bus
	}
}

// WithUnauthorizedWindow overrides the session-expired debounce window.
func WithUnauthorizedWindow(window time.Duration) Option {
	return func(c *Client) {
		c.authGuard = newUnauthorizedGuard(window)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithRateLimiter bounds outgoing request rate client-side. A denied
// request fails immediately with ErrRateLimited.
func WithRateLimiter(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCircuitBreaker wraps request execution in a circuit breaker. While
// open, calls fail fast with ErrCircuitOpen.
func WithCircuitBreaker(settings gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// WithRetryBudget caps total retries across all calls per window.
func WithRetryBudget(maxRetries int, perWindow time.Duration) Option {
	return func(c *Client) {
		c.retryBudget = NewRetryBudget(maxRetries, perWindow)
	}
}

// ValidateConfiguration checks the configured values and returns an
// aggregated error describing every problem found.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.maxRetries < 0 {
		problems = append(problems, "maxRetries must not be negative")
	}
	if c.backoff.Initial <= 0 {
		problems = append(problems, "initial backoff must be positive")
	}
	if c.backoff.Max > 0 && c.backoff.Max < c.backoff.Initial {
		problems = append(problems, "max backoff must not be below initial backoff")
	}
	if c.baseURL != "" && !strings.HasPrefix(c.baseURL, "http") {
		problems = append(problems, "baseURL must start with http or https")
	}
	if c.httpClient == nil {
		problems = append(problems, "http client must not be nil")
	}
	if c.bus == nil {
		problems = append(problems, "event bus must not be nil")
	}

	if len(problems) > 0 {
		return fmt.Errorf("transit: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
