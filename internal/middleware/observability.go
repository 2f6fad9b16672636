package middleware

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/lexfrei/unifi-mcp/observability"
)

// Observability returns a middleware that logs and records metrics for
// controller requests. Only method, host and path are logged; bodies,
// cookies and headers never are.
func Observability(logger observability.Logger, metrics observability.MetricsRecorder) func(http.RoundTripper) http.RoundTripper {
	if logger == nil {
		logger = observability.NoopLogger()
	}
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &observabilityTransport{
			next:    next,
			logger:  logger,
			metrics: metrics,
		}
	}
}

type observabilityTransport struct {
	next    http.RoundTripper
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

func (t *observabilityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	path := normalizePath(req.URL.Path)

	t.logger.Debug("controller request started",
		observability.Field{Key: "method", Value: req.Method},
		observability.Field{Key: "host", Value: req.URL.Host},
		observability.Field{Key: "path", Value: req.URL.Path},
	)

	resp, err := t.next.RoundTrip(req)

	duration := time.Since(start)

	if err != nil {
		t.logger.Error("controller request failed",
			observability.Field{Key: "method", Value: req.Method},
			observability.Field{Key: "path", Value: req.URL.Path},
			observability.Field{Key: "duration", Value: duration},
			observability.Field{Key: "error", Value: err.Error()},
		)

		t.metrics.RecordError("http_request", "NetworkError")

		//nolint:wrapcheck // Observability middleware logs error but passes it through unchanged
		return nil, err
	}

	fields := []observability.Field{
		{Key: "method", Value: req.Method},
		{Key: "path", Value: req.URL.Path},
		{Key: "status", Value: resp.StatusCode},
		{Key: "duration", Value: duration},
	}

	if resp.StatusCode >= http.StatusBadRequest {
		t.logger.Warn("controller request completed with error", fields...)
	} else {
		t.logger.Debug("controller request completed", fields...)
	}

	t.metrics.RecordHTTPRequest(req.Method, path, resp.StatusCode, duration)

	return resp, nil
}

var (
	// idPattern matches MAC addresses, UUIDs and 24-digit ObjectIDs in one pass.
	idPattern = regexp.MustCompile(
		`(?i)/(?:[0-9a-f]{2}:){5}[0-9a-f]{2}(?:/|$)` +
			`|[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}` +
			`|[0-9a-f]{24}`)

	// sitePattern matches the site segment of site-scoped API paths: /s/{site}/.
	sitePattern = regexp.MustCompile(`/api/s/[^/]+(/|$)`)

	// normalizedPathCache caches normalized paths; a controller exposes a
	// small fixed set of endpoints, so hits dominate.
	normalizedPathCache sync.Map
)

// normalizePath replaces dynamic path segments with placeholders to keep
// metric label cardinality bounded.
//
// Examples:
//   - /proxy/network/api/s/default/stat/sta → /proxy/network/api/s/:site/stat/sta
//   - /api/s/office/upd/user/507f1f77bcf86cd799439011 → /api/s/:site/upd/user/:id
//   - /api/s/default/stat/spectrum-scan/aa:bb:cc:dd:ee:ff → /api/s/:site/stat/spectrum-scan/:mac
func normalizePath(path string) string {
	if cached, ok := normalizedPathCache.Load(path); ok {
		//nolint:forcetypeassert // Cache only stores strings
		return cached.(string)
	}

	normalized := idPattern.ReplaceAllStringFunc(path, func(match string) string {
		if match[0] == '/' {
			if match[len(match)-1] == '/' {
				return "/:mac/"
			}
			return "/:mac"
		}
		return ":id"
	})

	normalized = sitePattern.ReplaceAllString(normalized, "/api/s/:site$1")

	normalizedPathCache.Store(path, normalized)

	return normalized
}
