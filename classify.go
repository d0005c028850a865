package transit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// User-safe messages by status bucket. Raw server text never reaches these;
// it is captured in APIError.DebugMessage instead.
const (
	msgServerError    = "Something went wrong on our side. Please try again later."
	msgSessionExpired = "Your session has expired. Please sign in again."
	msgPlanRequired   = "Your current plan does not include this feature."
	msgQuotaReached   = "You have reached your usage quota. Please try again later."
	msgRequestFailed  = "The request could not be completed."
)

// classifyHTTP maps a non-2xx response to an APIError and emits the matching
// transport signal. The error is always returned to the caller afterwards;
// classification never swallows a failure.
func (c *Client) classifyHTTP(method, rawURL string, resp *http.Response, body []byte, requestID string) *APIError {
	status := resp.StatusCode
	serverMsg := serverMessage(body)

	apiErr := &APIError{
		Status:       status,
		RequestID:    requestID,
		Code:         gjson.GetBytes(body, "code").String(),
		DebugMessage: serverMsg,
	}

	switch {
	case status >= 500:
		apiErr.Message = msgServerError
		if requestID != "" {
			apiErr.Message = fmt.Sprintf("%s (ref: %s)", msgServerError, requestID)
		}
	case status == http.StatusUnauthorized:
		apiErr.Message = msgSessionExpired
		c.signalUnauthorized(method, rawURL)
	case status == http.StatusPaymentRequired:
		apiErr.Message = msgPlanRequired
		c.signalPaywall(PaywallPlan, resp, body)
	case status == http.StatusTooManyRequests:
		apiErr.Message = msgQuotaReached
		c.signalPaywall(PaywallRate, resp, body)
	default:
		if serverMsg != "" {
			apiErr.Message = serverMsg
		} else {
			apiErr.Message = msgRequestFailed
		}
	}

	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		apiErr.Details = validationDetails(body)
	}

	return apiErr
}

// signalUnauthorized funnels a 401 through the debounce guard. Only the call
// that wins the window emits; the router-level callback is skipped when the
// failing request targets the login endpoint itself, which would otherwise
// loop the redirect.
func (c *Client) signalUnauthorized(method, rawURL string) {
	c.authGuard.fire(func() {
		c.bus.Emit(EventUnauthorized, nil)
		c.metrics.RecordUnauthorizedSignal()
		if c.onUnauthorized != nil && !c.isLoginURL(rawURL) {
			c.onUnauthorized()
		}
		if c.logger != nil {
			c.logger.Info("session expired signal emitted", "method", method, "url", rawURL)
		}
	})
}

func (c *Client) signalPaywall(reason PaywallReason, resp *http.Response, body []byte) {
	payload := PaywallPayload{
		Reason:     reason,
		UpgradeURL: gjson.GetBytes(body, "upgrade_url").String(),
		Feature:    gjson.GetBytes(body, "feature").String(),
	}
	if reason == PaywallRate {
		// The Retry-After header wins over any body field of the same meaning.
		payload.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		if payload.RetryAfter == 0 {
			payload.RetryAfter = int(gjson.GetBytes(body, "retry_after").Int())
		}
	}

	event := EventPaywallPlan
	if reason == PaywallRate {
		event = EventPaywallRate
	}
	c.bus.Emit(event, payload)
	c.metrics.RecordPaywallSignal(reason)
}

func (c *Client) isLoginURL(rawURL string) bool {
	return c.loginPath != "" && strings.Contains(rawURL, c.loginPath)
}

// serverMessage extracts the raw server-provided message from an error body.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	for _, field := range []string{"message", "error", "detail"} {
		if v := gjson.GetBytes(body, field); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	if !json.Valid(body) {
		return truncate(strings.TrimSpace(string(body)), 512)
	}
	return ""
}

// validationDetails pulls field-level errors for 400/422 responses so forms
// can bind them upstream. Falls back to the whole decoded body.
func validationDetails(body []byte) any {
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	for _, field := range []string{"errors", "details"} {
		if v := gjson.GetBytes(body, field); v.Exists() {
			return v.Value()
		}
	}
	return gjson.ParseBytes(body).Value()
}

// parseRetryAfter parses a Retry-After value into whole seconds. Both the
// delay-seconds and the HTTP-date forms are supported; the result is capped
// at one hour.
func parseRetryAfter(value string) int {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}
		if seconds > 3600 {
			return 3600
		}
		return seconds
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return int(delay / time.Second)
		}
	}

	return 0
}
