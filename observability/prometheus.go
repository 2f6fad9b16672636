package observability

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements MetricsRecorder on top of Prometheus collectors.
type PrometheusRecorder struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	rateLimitWaits *prometheus.HistogramVec
	errs           *prometheus.CounterVec
	logins         *prometheus.CounterVec
	loginDuration  *prometheus.HistogramVec
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
}

// Compile-time check to ensure PrometheusRecorder implements MetricsRecorder.
var _ MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates the collectors under namespace and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) (*PrometheusRecorder, error) {
	if reg == nil {
		return nil, errors.New("prometheus registerer is required")
	}

	recorder := &PrometheusRecorder{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_http_requests_total",
			Help:      "Controller HTTP requests by method, normalized path and status code.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "controller_http_request_duration_seconds",
			Help:      "Controller HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_auth_retries_total",
			Help:      "Requests replayed after a session expiry was detected.",
		}, []string{"endpoint"}),
		rateLimitWaits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "controller_rate_limit_wait_seconds",
			Help:      "Time spent waiting on the client-side rate limiter.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by operation and type.",
		}, []string{"operation", "type"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_logins_total",
			Help:      "Controller login attempts by variant and outcome.",
		}, []string{"variant", "outcome"}),
		loginDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "controller_login_duration_seconds",
			Help:      "Controller login latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"variant"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions by name and result.",
		}, []string{"action", "result"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "End-to-end action latency including controller calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}

	for _, collector := range []prometheus.Collector{
		recorder.httpRequests,
		recorder.httpDuration,
		recorder.retries,
		recorder.rateLimitWaits,
		recorder.errs,
		recorder.logins,
		recorder.loginDuration,
		recorder.actions,
		recorder.actionDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, errors.Wrap(err, "failed to register collector")
		}
	}

	return recorder, nil
}

func (r *PrometheusRecorder) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	r.httpRequests.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	r.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordRetry(_ int, endpoint string) {
	r.retries.WithLabelValues(endpoint).Inc()
}

func (r *PrometheusRecorder) RecordRateLimit(endpoint string, wait time.Duration) {
	r.rateLimitWaits.WithLabelValues(endpoint).Observe(wait.Seconds())
}

func (r *PrometheusRecorder) RecordError(operation, errorType string) {
	r.errs.WithLabelValues(operation, errorType).Inc()
}

func (r *PrometheusRecorder) RecordLogin(variant, outcome string, duration time.Duration) {
	r.logins.WithLabelValues(variant, outcome).Inc()
	r.loginDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordAction(action string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}

	r.actions.WithLabelValues(action, result).Inc()
	r.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}
