package middleware

import (
	"crypto/tls"
	"net/http"
)

// TLSConfig returns a middleware that installs config on the innermost
// *http.Transport. It must be the last middleware in the chain.
func TLSConfig(config *tls.Config) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		transport, ok := next.(*http.Transport)
		if !ok {
			defaultTransport, ok := http.DefaultTransport.(*http.Transport)
			if !ok {
				return next
			}
			transport = defaultTransport.Clone()
			transport.ForceAttemptHTTP2 = true
		} else {
			transport = transport.Clone()
		}

		transport.TLSClientConfig = config

		return transport
	}
}

// ControllerTLS returns the TLS policy for a controller connection.
// With verify false, certificate verification is skipped: controllers ship
// self-signed certificates out of the box.
func ControllerTLS(verify bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !verify, //nolint:gosec // Opt-in via UNIFI_VERIFY_SSL
	}
}
