package main

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/config"
	"github.com/lexfrei/unifi-mcp/internal/controller"
	"github.com/lexfrei/unifi-mcp/internal/handlers"
	"github.com/lexfrei/unifi-mcp/internal/httpclient"
	"github.com/lexfrei/unifi-mcp/internal/middleware"
	"github.com/lexfrei/unifi-mcp/internal/ratelimit"
	"github.com/lexfrei/unifi-mcp/internal/session"
	"github.com/lexfrei/unifi-mcp/observability"
)

const (
	metricsNamespace = "unifi_mcp"
	logoutTimeout    = 5 * time.Second
)

// app is the wired process: configuration, telemetry, session and dispatcher.
type app struct {
	cfg        *config.Config
	logger     observability.Logger
	registry   *prometheus.Registry
	sessions   *session.Manager
	dispatcher *action.Dispatcher
	logCloser  io.Closer
}

// newApp loads configuration and assembles every component. adjust, when
// non-nil, may change the loaded configuration before it is validated again.
func newApp(opts *rootOptions, logOutput io.Writer, adjust func(*config.Config)) (*app, error) {
	cfg, err := config.Load(config.Options{
		File:    opts.configFile,
		EnvFile: opts.envFile,
		Lookup:  opts.lookup,
	})
	if err != nil {
		//nolint:wrapcheck // Load errors name the offending setting
		return nil, err
	}

	if adjust != nil {
		adjust(cfg)
		if err := cfg.Validate(); err != nil {
			//nolint:wrapcheck // Validate errors name the offending setting
			return nil, err
		}
	}

	slogger, closer, err := newLogger(cfg.Server, logOutput)
	if err != nil {
		return nil, err
	}
	logger := observability.NewSlogLogger(slogger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := observability.NewPrometheusRecorder(registry, metricsNamespace)
	if err != nil {
		_ = closer.Close()
		return nil, errors.Wrap(err, "failed to create metrics recorder")
	}

	httpClient := httpclient.New(
		httpclient.WithTimeout(cfg.HTTP.Timeout),
		httpclient.WithMiddleware(
			middleware.Observability(logger, metrics),
			middleware.RateLimit(middleware.RateLimitConfig{
				Selector: middleware.LoginSelector(
					ratelimit.NewRateLimiter(cfg.HTTP.RateLimitPerMinute),
					ratelimit.NewLoginLimiter(),
				),
				Logger:  logger,
				Metrics: metrics,
			}),
			middleware.Headers(middleware.DefaultHeaders("unifi-mcp/"+version)),
			middleware.TLSConfig(middleware.ControllerTLS(cfg.Controller.VerifyTLS)),
		),
	)

	sessions := session.NewManager(session.Config{
		Profile:      cfg.Controller,
		HTTPClient:   httpClient,
		LoginTimeout: cfg.HTTP.LoginTimeout,
		Logger:       logger,
		Metrics:      metrics,
	})

	client, err := controller.New(controller.Config{
		Sessions:       sessions,
		HTTPClient:     httpClient,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		_ = closer.Close()
		//nolint:wrapcheck // Construction errors are descriptive
		return nil, err
	}

	reg, err := handlers.NewRegistry(client)
	if err != nil {
		_ = closer.Close()
		//nolint:wrapcheck // Registry errors name the offending action
		return nil, err
	}

	logger.Info("configured controller",
		observability.Field{Key: "controller", Value: cfg.Controller.String()},
		observability.Field{Key: "verify_tls", Value: cfg.Controller.VerifyTLS},
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		sessions:   sessions,
		dispatcher: action.NewDispatcher(reg, action.WithLogger(logger), action.WithMetrics(metrics)),
		logCloser:  closer,
	}, nil
}

// close logs out of the controller when a session is open and flushes the log file.
func (a *app) close() {
	if a.sessions.State() == session.Authenticated {
		ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		defer cancel()

		if err := a.sessions.Logout(ctx); err != nil {
			a.logger.Warn("logout failed", observability.Field{Key: "error", Value: err.Error()})
		}
	}

	_ = a.logCloser.Close()
}
