package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/lexfrei/unifi-mcp/observability"
)

// RateLimiterSelector chooses which rate limiter to use for a given request.
// Returns the rate limiter and a descriptive name for logging/metrics.
type RateLimiterSelector func(*http.Request) (*rate.Limiter, string)

// RateLimitConfig configures the rate limit middleware.
type RateLimitConfig struct {
	Limiter  *rate.Limiter       // Single limiter (used if Selector is nil)
	Selector RateLimiterSelector // Optional: select limiter based on request
	Logger   observability.Logger
	Metrics  observability.MetricsRecorder
}

// RateLimit returns a middleware that paces requests to the controller.
func RateLimit(cfg RateLimitConfig) func(http.RoundTripper) http.RoundTripper {
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &rateLimitTransport{
			next:     next,
			limiter:  cfg.Limiter,
			selector: cfg.Selector,
			logger:   cfg.Logger,
			metrics:  cfg.Metrics,
		}
	}
}

// LoginSelector routes login and logout calls to the login limiter and
// everything else to the api limiter. Controllers lock accounts after a
// burst of failed logins, so logins get a much smaller budget.
func LoginSelector(api, login *rate.Limiter) RateLimiterSelector {
	return func(req *http.Request) (*rate.Limiter, string) {
		path := req.URL.Path
		if strings.HasSuffix(path, "/login") || strings.HasSuffix(path, "/logout") {
			return login, "login"
		}

		return api, "api"
	}
}

type rateLimitTransport struct {
	next     http.RoundTripper
	limiter  *rate.Limiter
	selector RateLimiterSelector
	logger   observability.Logger
	metrics  observability.MetricsRecorder
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	limiter := t.limiter
	endpoint := "default"

	if t.selector != nil {
		limiter, endpoint = t.selector(req)
	}

	if limiter == nil {
		//nolint:wrapcheck // Middleware passes through errors from next handler in chain
		return t.next.RoundTrip(req)
	}

	if err := t.wait(req.Context(), limiter, endpoint, req.URL.Path); err != nil {
		return nil, err
	}

	//nolint:wrapcheck // Middleware passes through errors from next handler in chain
	return t.next.RoundTrip(req)
}

func (t *rateLimitTransport) wait(ctx context.Context, limiter *rate.Limiter, endpoint, path string) error {
	reservation := limiter.Reserve()
	if !reservation.OK() {
		return errors.New("rate limit reservation failed")
	}

	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}

	t.logger.Debug("rate limit delay",
		observability.Field{Key: "endpoint", Value: endpoint},
		observability.Field{Key: "delay", Value: delay},
		observability.Field{Key: "path", Value: path},
	)

	t.metrics.RecordRateLimit(endpoint, delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return errors.Wrap(ctx.Err(), "context canceled during rate limit wait")
	}
}
