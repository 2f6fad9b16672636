// Package httpclient builds the http.Client used to talk to the controller.
//
// The client is assembled from a base http.Client and a chain of
// RoundTripper middleware; both the session manager and the request client
// share one instance so they see the same TLS policy, pacing and telemetry.
package httpclient

import (
	"net/http"
	"time"
)

// DefaultTimeout caps a whole exchange when no timeout option is given.
const DefaultTimeout = 30 * time.Second

// Doer sends a single HTTP request. *Client and *http.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an HTTP client that supports middleware chaining.
type Client struct {
	base       *http.Client
	middleware []Middleware
}

// Middleware wraps an http.RoundTripper to add behavior.
// Middleware is applied in order: first middleware is outermost.
type Middleware func(http.RoundTripper) http.RoundTripper

// New creates a new HTTP client with the given options.
//
// Redirects are not followed: a controller answering a login or API call
// with a redirect is reported to the caller as-is.
func New(opts ...Option) *Client {
	c := &Client{
		base: &http.Client{
			Timeout:       DefaultTimeout,
			CheckRedirect: noRedirect,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if len(c.middleware) > 0 {
		transport := c.base.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}

		for i := len(c.middleware) - 1; i >= 0; i-- {
			transport = c.middleware[i](transport)
		}

		c.base.Transport = transport
	}

	return c
}

// Do executes an HTTP request using the configured middleware chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	//nolint:wrapcheck // Callers classify transport errors themselves
	return c.base.Do(req)
}

// HTTPClient returns the underlying http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.base
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
