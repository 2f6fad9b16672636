// Package ratelimit builds the token buckets that pace controller traffic.
package ratelimit

import "golang.org/x/time/rate"

const (
	// LoginsPerMinute is the login budget. UniFi OS locks an account after
	// repeated failed logins, so this stays far below the API budget.
	LoginsPerMinute = 6

	// LoginBurst allows an initial login plus a few quick re-logins.
	LoginBurst = 3
)

// NewRateLimiter creates a limiter that refills at requestsPerMinute/60 tokens
// per second. Burst is one tenth of a minute's budget, and at least one, so a
// caller cannot drain a full minute of requests at once.
func NewRateLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), max(1, requestsPerMinute/10))
}

// NewLoginLimiter creates the limiter applied to login and logout calls.
func NewLoginLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(LoginsPerMinute)/60.0), LoginBurst)
}
