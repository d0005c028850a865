// Package transit is the HTTP transport layer for the horoscope backend:
//
//   - Header construction with auth and idempotency-key injection
//   - Timeout / caller-cancellation race with distinct failure reasons
//   - Content-type driven response parsing (JSON, blob, text)
//   - A two-kind error taxonomy: APIError (server rejected) vs NetworkError
//     (no response at all)
//   - A typed event bus broadcasting unauthorized, paywall and trace signals
//     without coupling the transport to any UI or framework
//   - Debounced session-expired signalling across concurrent 401 bursts
//   - Bounded retry of idempotent reads with exponential backoff
//   - Optional rate limiting, circuit breaking, retry budget and Prometheus
//     metrics
//
// Typical usage:
//
//	client := transit.New(
//	    transit.WithBaseURL("https://api.example.com"),
//	    transit.WithTokenSource(store),
//	    transit.WithOnUnauthorized(redirectToLogin),
//	)
//
//	var horoscope DailyHoroscope
//	err := client.Get(ctx, "/v1/horoscope/daily", &horoscope)
//
// Mutations are never retried by this layer; idempotency keys only guard
// against duplicate submission, with retry decisions left to callers.
package transit
