// Package controller executes authenticated calls against the controller's
// private REST API.
//
// Every call goes through Client.Execute, which obtains a session, attaches
// its cookie and CSRF token, and recovers from an expired session by logging
// in again exactly once. Other failures are classified and returned as-is.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/unifi-mcp/internal/config"
	"github.com/lexfrei/unifi-mcp/internal/httpclient"
	"github.com/lexfrei/unifi-mcp/internal/response"
	"github.com/lexfrei/unifi-mcp/internal/retry"
	"github.com/lexfrei/unifi-mcp/internal/session"
	"github.com/lexfrei/unifi-mcp/internal/unifierr"
	"github.com/lexfrei/unifi-mcp/observability"
)

// maxAuthRecoveries is how many times one call may re-login after the
// controller rejects its session. A second rejection is final.
const maxAuthRecoveries = 1

// DefaultSite is the site every controller has.
const DefaultSite = "default"

const maxResponseBody = 32 << 20

// Sessions is the part of session.Manager the client depends on.
type Sessions interface {
	EnsureAuthenticated(ctx context.Context) (session.Session, error)
	Expire(stale session.Session) bool
	UpdateCSRF(generation uint64, token string)
	Variant() session.Variant
	BaseURL() string
}

// Scope selects the URL prefix of a request.
type Scope int

const (
	// ScopeSite prefixes the path with {api}/s/{site}.
	ScopeSite Scope = iota
	// ScopeController prefixes the path with {api}, e.g. /self/sites.
	ScopeController
	// ScopeApp prefixes the path with the Network application root, e.g. /status.
	ScopeApp
)

// Request describes one controller call.
type Request struct {
	Method string
	Path   string
	Scope  Scope

	// Site is the site name for ScopeSite. Empty means DefaultSite.
	Site string

	// Body is JSON-encoded when non-nil.
	Body any

	Query url.Values
}

// RawResponse is a controller answer with a 2xx status.
type RawResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// StatusCode returns the HTTP status.
func (r *RawResponse) StatusCode() int { return r.Status }

// Bytes returns the raw body.
func (r *RawResponse) Bytes() []byte { return r.Body }

// Config configures a Client.
type Config struct {
	Sessions   Sessions
	HTTPClient httpclient.Doer

	// RequestTimeout bounds one HTTP exchange, re-login excluded.
	RequestTimeout time.Duration

	Logger  observability.Logger
	Metrics observability.MetricsRecorder

	// Now overrides time.Now in tests.
	Now func() time.Time
}

// Client is the request client. It is safe for concurrent use.
type Client struct {
	sessions       Sessions
	http           httpclient.Doer
	requestTimeout time.Duration
	logger         observability.Logger
	metrics        observability.MetricsRecorder
	now            func() time.Time
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("controller client requires a session manager")
	}

	c := &Client{
		sessions:       cfg.Sessions,
		http:           cfg.HTTPClient,
		requestTimeout: cfg.RequestTimeout,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		now:            cfg.Now,
	}

	if c.http == nil {
		c.http = httpclient.New()
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = config.DefaultRequestTimeout
	}
	if c.logger == nil {
		c.logger = observability.NoopLogger()
	}
	if c.metrics == nil {
		c.metrics = observability.NoopMetricsRecorder()
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.logger = c.logger.With(observability.Field{Key: "component", Value: "controller"})

	return c, nil
}

// Execute performs req with the current session.
//
// An authentication failure (401, 403, or the "login required" marker)
// expires the session that was used, logs in again and repeats the call
// once. A second authentication failure is returned as AuthenticationError.
// Other non-2xx answers are returned as ControllerError and transport
// failures as ConnectivityError; neither is retried.
func (c *Client) Execute(ctx context.Context, req Request) (*RawResponse, error) {
	target, err := c.URL(req)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if req.Body != nil {
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s %s body", req.Method, req.Path)
		}
	}

	recoveries := 0

	for {
		s, err := c.sessions.EnsureAuthenticated(ctx)
		if err != nil {
			//nolint:wrapcheck // Session errors are already typed
			return nil, err
		}

		resp, err := c.send(ctx, req.Method, target, payload, s)
		if err != nil {
			return nil, err
		}

		if authFailure(resp) {
			if recoveries >= maxAuthRecoveries {
				c.metrics.RecordError("controller_request", "AuthenticationError")

				return nil, &unifierr.AuthenticationError{
					Status: resp.Status,
					Reason: "controller rejected a freshly established session",
				}
			}

			recoveries++
			c.sessions.Expire(s)
			c.metrics.RecordRetry(recoveries, req.Path)
			c.logger.Info("session rejected by controller, logging in again",
				observability.Field{Key: "path", Value: req.Path},
				observability.Field{Key: "status", Value: resp.Status},
				observability.Field{Key: "generation", Value: s.Generation},
			)

			continue
		}

		c.sessions.UpdateCSRF(s.Generation, resp.Header.Get(session.HeaderUpdatedCSRF))

		if resp.Status < http.StatusOK || resp.Status >= http.StatusMultipleChoices {
			return nil, c.controllerError(resp)
		}

		return resp, nil
	}
}

// URL resolves the absolute URL of req for the session's controller variant.
func (c *Client) URL(req Request) (string, error) {
	if req.Path == "" || req.Path[0] != '/' {
		return "", errors.Newf("request path %q must start with /", req.Path)
	}

	appRoot := ""
	if c.sessions.Variant() == session.VariantUDM {
		appRoot = "/proxy/network"
	}

	var prefix string

	switch req.Scope {
	case ScopeSite:
		site := req.Site
		if site == "" {
			site = DefaultSite
		}
		prefix = appRoot + "/api/s/" + url.PathEscape(site)
	case ScopeController:
		prefix = appRoot + "/api"
	case ScopeApp:
		prefix = appRoot
	default:
		return "", errors.Newf("unknown request scope %d", req.Scope)
	}

	target := c.sessions.BaseURL() + prefix + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	return target, nil
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, s session.Session) (*RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s request", method)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	s.Apply(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		//nolint:wrapcheck // Connectivity is the typed wrapper
		return nil, unifierr.Connectivity(method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		//nolint:wrapcheck // Connectivity is the typed wrapper
		return nil, unifierr.Connectivity(method, target, err)
	}

	return &RawResponse{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func authFailure(resp *RawResponse) bool {
	switch resp.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	default:
		return response.LoginRequired(resp.Body)
	}
}

func (c *Client) controllerError(resp *RawResponse) error {
	err := error(&unifierr.ControllerError{
		Status:     resp.Status,
		Message:    response.Message(resp.Body),
		Body:       resp.Body,
		RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
	})

	c.metrics.RecordError("controller_request", "ControllerError")

	if retry.Transient(resp.Status) {
		err = errors.WithHint(err, "the controller is busy or restarting; try again shortly")
	}

	return err
}
