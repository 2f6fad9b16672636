// Package observability defines the logging and metrics hooks shared by the
// session manager, the request client, the HTTP middleware and the action
// dispatcher.
//
// Logger takes a message plus Field key/value pairs. The slog adapter is
// what the command uses:
//
//	logger := observability.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
//	sessions := session.NewManager(session.Config{Profile: profile, Logger: logger})
//
// MetricsRecorder receives controller traffic (requests, replays after a
// session expiry, pacing delays, errors), login attempts per controller
// variant and dispatched actions. PrometheusRecorder registers one collector
// per signal:
//
//	reg := prometheus.NewRegistry()
//	metrics, err := observability.NewPrometheusRecorder(reg, "unifi_mcp")
//
// Components given a nil Logger or MetricsRecorder fall back to
// NoopLogger and NoopMetricsRecorder.
package observability
