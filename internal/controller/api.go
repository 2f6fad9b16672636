package controller

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/unifi-mcp/internal/response"
)

// List executes req and decodes the envelope's data array into []T.
// An in-body failure result code is returned as ControllerError even when
// the HTTP status is 200.
func List[T any](ctx context.Context, c *Client, req Request) ([]T, error) {
	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, describe(req))
	}

	//nolint:wrapcheck // Handle wraps with the request description
	return response.Handle[T](resp, nil, describe(req))
}

// First executes req and returns the first data element, or ok=false when
// the controller answered with an empty list.
func First[T any](ctx context.Context, c *Client, req Request) (T, bool, error) {
	var zero T

	items, err := List[T](ctx, c, req)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}

	return items[0], true, nil
}

// Object executes req and decodes the whole body as an object.
func (c *Client) Object(ctx context.Context, req Request) (map[string]any, error) {
	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, describe(req))
	}

	//nolint:wrapcheck // HandleObject wraps with the request description
	return response.HandleObject(resp, nil, describe(req))
}

// Command posts payload to the site's /cmd/{manager} endpoint, e.g.
// manager "devmgr" with {"cmd": "restart", "mac": "..."}.
func (c *Client) Command(ctx context.Context, site, manager string, payload map[string]any) ([]map[string]any, error) {
	return List[map[string]any](ctx, c, Request{
		Method: http.MethodPost,
		Path:   "/cmd/" + manager,
		Scope:  ScopeSite,
		Site:   site,
		Body:   payload,
	})
}

func describe(req Request) string {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	return method + " " + req.Path
}
