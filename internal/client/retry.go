package client

import (
	"net/http"
	"strings"
	"time"
)

// RetryPolicy controls how a logical request is retried. Delays grow
// linearly with the attempt number (baseDelay * attempt); exponential
// backoff is deliberately not used here, the remote service is a single
// management API and linear growth keeps worst-case latency predictable.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	RetryableStatuses map[int]bool
}

// DefaultRetryPolicy returns the retry policy used by the console
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		RetryableStatuses: map[int]bool{
			http.StatusRequestTimeout:      true, // 408
			http.StatusTooManyRequests:     true, // 429
			http.StatusInternalServerError: true, // 500, gated by idempotency below
			http.StatusBadGateway:          true, // 502
			http.StatusServiceUnavailable:  true, // 503
			http.StatusGatewayTimeout:      true, // 504
		},
	}
}

// Delay returns the pause before retry attempt n (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// ShouldRetry reports whether a failed attempt may be retried. A 500 on a
// non-idempotent method is not retried, the server may have applied the
// write before failing; the server-start endpoint is the one exception
// because the service rejects a duplicate start with 409.
func (p RetryPolicy) ShouldRetry(method, path string, status, attempt int) bool {
	if attempt >= p.MaxRetries {
		return false
	}

	if !p.RetryableStatuses[status] {
		return false
	}

	if status == http.StatusInternalServerError && !isIdempotent(method) && !isRetryableWritePath(path) {
		return false
	}

	return true
}

// isIdempotent reports whether the HTTP method carries no write semantics
func isIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return false
	}
	return true
}

// isRetryableWritePath matches POST /api/servers/{name}/start, the only
// non-idempotent endpoint safe to replay on a 500
func isRetryableWritePath(path string) bool {
	return strings.HasPrefix(path, "/api/servers/") && strings.HasSuffix(path, "/start")
}
