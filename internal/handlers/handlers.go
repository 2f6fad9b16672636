// Package handlers implements every action against the controller's private
// API and builds the registry that describes them.
package handlers

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/controller"
)

// Handlers holds the dependencies shared by all action handlers.
type Handlers struct {
	client *controller.Client
	now    func() time.Time
}

// Option configures Handlers.
type Option func(*Handlers)

// WithClock overrides time.Now for the time windows of history queries.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) {
		if now != nil {
			h.now = now
		}
	}
}

// New creates Handlers bound to client.
func New(client *controller.Client, opts ...Option) *Handlers {
	h := &Handlers{client: client, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Descriptors returns the descriptor of every action.
func (h *Handlers) Descriptors() []action.Descriptor {
	return slices.Concat(
		h.deviceActions(),
		h.clientActions(),
		h.networkActions(),
		h.monitoringActions(),
	)
}

// NewRegistry builds the complete action registry over client.
func NewRegistry(client *controller.Client, opts ...Option) (*action.Registry, error) {
	if client == nil {
		return nil, errors.New("handlers require a controller client")
	}

	//nolint:wrapcheck // Registry errors name the offending action
	return action.NewRegistry(New(client, opts...).Descriptors()...)
}

const sitePattern = `^[A-Za-z0-9._-]+$`

func siteParam() action.Param {
	return action.Param{
		Name:        action.SiteParam,
		Kind:        action.KindString,
		Description: "Site name (the short id, not the description)",
		Default:     controller.DefaultSite,
		Constraints: []action.Constraint{action.Matches(sitePattern)},
	}
}

func macParam(description string) action.Param {
	return action.Param{Name: "mac", Kind: action.KindMAC, Description: description}
}

func limitParam(def, maximum int) action.Param {
	return action.Param{
		Name:        "limit",
		Kind:        action.KindInt,
		Description: "Maximum number of entries to return",
		Default:     def,
		Constraints: []action.Constraint{action.Min(1), action.Max(maximum)},
	}
}

// siteList fetches a site-scoped collection with GET.
func siteList[T any](ctx context.Context, c *controller.Client, p action.Params, path string) ([]T, error) {
	//nolint:wrapcheck // List wraps with the request description
	return controller.List[T](ctx, c, controller.Request{Path: path, Site: p.Site()})
}

// sitePost fetches a site-scoped collection with a POST query body.
func sitePost[T any](ctx context.Context, c *controller.Client, p action.Params, path string, body any) ([]T, error) {
	//nolint:wrapcheck // List wraps with the request description
	return controller.List[T](ctx, c, controller.Request{
		Method: http.MethodPost,
		Path:   path,
		Site:   p.Site(),
		Body:   body,
	})
}

// CommandResult is the Data of every action that posts a /cmd request.
type CommandResult struct {
	MAC     string           `json:"mac,omitempty"`
	Command string           `json:"command"`
	Details []map[string]any `json:"details"`
}

func (h *Handlers) command(ctx context.Context, p action.Params, manager string, payload map[string]any) (CommandResult, error) {
	details, err := h.client.Command(ctx, p.Site(), manager, payload)
	if err != nil {
		//nolint:wrapcheck // Command wraps with the request description
		return CommandResult{}, err
	}

	cmd, _ := payload["cmd"].(string)

	return CommandResult{MAC: p.String("mac"), Command: cmd, Details: details}, nil
}

// macEqual compares a controller-reported MAC with a normalized one.
func macEqual(reported, normalized string) bool {
	n, err := controller.NormalizeMAC(reported)
	return err == nil && n == normalized
}
