package middleware

import (
	"maps"
	"net/http"
)

// Headers returns a middleware that sets static headers on every request.
// Headers already present on the request are left untouched, so per-call
// values such as Content-Type or the CSRF token always win.
func Headers(headers map[string]string) func(http.RoundTripper) http.RoundTripper {
	static := maps.Clone(headers)

	return func(next http.RoundTripper) http.RoundTripper {
		return &headersTransport{
			next:    next,
			headers: static,
		}
	}
}

// DefaultHeaders are sent with every controller request.
func DefaultHeaders(userAgent string) map[string]string {
	return map[string]string{
		"Accept":     "application/json",
		"User-Agent": userAgent,
	}
}

type headersTransport struct {
	next    http.RoundTripper
	headers map[string]string
}

func (t *headersTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = cloneRequest(req)

	for name, value := range t.headers {
		if req.Header.Get(name) == "" {
			req.Header.Set(name, value)
		}
	}

	//nolint:wrapcheck // Middleware passes through errors from next handler in chain
	return t.next.RoundTrip(req)
}

// cloneRequest creates a shallow copy of the request with a cloned header map.
func cloneRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = make(http.Header, len(req.Header))
	maps.Copy(r.Header, req.Header)
	return r
}
