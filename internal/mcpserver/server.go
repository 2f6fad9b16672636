// Package mcpserver exposes the action dispatcher as an MCP server: one tool
// named "unifi", read-only resources describing the actions and the
// controller session, and site data resources backed by the same actions.
package mcpserver

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/session"
	"github.com/lexfrei/unifi-mcp/observability"
)

const shutdownTimeout = 5 * time.Second

// SessionSource reports the controller session without exposing secrets.
type SessionSource interface {
	Snapshot() session.Session
	BaseURL() string
}

// Config configures a Server.
type Config struct {
	Name    string
	Version string

	Dispatcher *action.Dispatcher
	Sessions   SessionSource

	Logger observability.Logger
}

// Server hosts the dispatcher over MCP.
type Server struct {
	dispatcher *action.Dispatcher
	sessions   SessionSource
	logger     observability.Logger
	mcp        *server.MCPServer
}

// New creates a Server and registers the tool and resources.
func New(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("mcp server requires a dispatcher")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("mcp server requires a session source")
	}
	if cfg.Name == "" {
		cfg.Name = "unifi-mcp"
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}

	s := &Server{
		dispatcher: cfg.Dispatcher,
		sessions:   cfg.Sessions,
		logger:     cfg.Logger.With(observability.Field{Key: "component", Value: "mcp"}),
		mcp: server.NewMCPServer(cfg.Name, cfg.Version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(buildTool(cfg.Dispatcher.Registry()), s.handleTool)
	s.registerResources()
	s.registerDataResources()

	return s, nil
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over stdin and stdout until ctx ends or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")

	//nolint:wrapcheck // Transport errors are reported as-is
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// Router returns the HTTP surface of the SSE transport: /sse and /message
// for MCP, /metrics for Prometheus and /healthz.
func (s *Server) Router(sse *server.SSEServer, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/sse", sse.SSEHandler())
	r.Handle("/message", sse.MessageHandler())

	return r
}

// ServeSSE listens on host:port and serves the SSE transport until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, host string, port int, gatherer prometheus.Gatherer) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	publicHost := host
	if publicHost == "" || publicHost == "0.0.0.0" || publicHost == "::" {
		publicHost = "localhost"
	}
	baseURL := "http://" + net.JoinHostPort(publicHost, strconv.Itoa(port))

	sse := server.NewSSEServer(s.mcp, server.WithBaseURL(baseURL))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(sse, gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.logger.Info("serving MCP over SSE",
			observability.Field{Key: "address", Value: addr},
			observability.Field{Key: "base_url", Value: baseURL},
		)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "failed to serve on %s", addr)
		}

		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down SSE transport")
		_ = sse.Shutdown(shutdownCtx)

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}

		return nil
	})

	//nolint:wrapcheck // Both goroutines wrap their errors
	return group.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","session":"` + s.sessions.Snapshot().State.String() + `"}`))
}
