// Package httpclient is the engine's network stack.
//
// It is built on go-resty/resty with:
//   - retries decided by go-retryablehttp's default policy and backoff
//   - a process-wide rate limit (golang.org/x/time/rate)
//   - one circuit breaker per host (internal/infrastructure/resilience)
//   - the profile's cookie jar on every request
//
// 4xx and 5xx responses are returned, not turned into errors; the engine
// renders them like any other page. 5xx still counts against the host's
// breaker.
package httpclient
