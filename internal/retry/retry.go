// Package retry classifies controller failures for callers that own a retry
// policy. Nothing in this module retries non-authentication failures itself.
package retry

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Transient returns true if the HTTP status code usually clears on its own:
//   - 429 (Too Many Requests)
//   - 502, 503, 504 (controller restarting or behind a busy proxy)
func Transient(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ParseRetryAfter parses a Retry-After header relative to now.
// The header can contain either a number of seconds or an HTTP-date.
// Returns 0 if the header is empty, unparsable, or in the past.
func ParseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(header); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait
		}
	}

	return 0
}
