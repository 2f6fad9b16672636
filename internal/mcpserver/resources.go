package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs.
const (
	ActionsURI = "unifi://actions"
	SessionURI = "unifi://session"
)

const jsonMIME = "application/json"

// SessionInfo is the unifi://session document. It never carries cookies or tokens.
type SessionInfo struct {
	State           string     `json:"state"`
	Variant         string     `json:"variant"`
	BaseURL         string     `json:"base_url"`
	Generation      uint64     `json:"generation"`
	AuthenticatedAt *time.Time `json:"authenticated_at,omitempty"`
	CSRFTokenSet    bool       `json:"csrf_token_set"`
}

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource(ActionsURI, "Available actions",
		mcp.WithResourceDescription("Every action with its required and optional parameters"),
		mcp.WithMIMEType(jsonMIME),
	), s.readActions)

	s.mcp.AddResource(mcp.NewResource(SessionURI, "Controller session",
		mcp.WithResourceDescription("Login state of the controller session"),
		mcp.WithMIMEType(jsonMIME),
	), s.readSession)
}

func (s *Server) readActions(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(ActionsURI, s.dispatcher.Registry().Catalog())
}

func (s *Server) readSession(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(SessionURI, s.sessionInfo())
}

func (s *Server) sessionInfo() SessionInfo {
	snap := s.sessions.Snapshot()

	info := SessionInfo{
		State:        snap.State.String(),
		Variant:      string(snap.Variant),
		BaseURL:      s.sessions.BaseURL(),
		Generation:   snap.Generation,
		CSRFTokenSet: snap.CSRFToken != "",
	}
	if !snap.AuthenticatedAt.IsZero() {
		at := snap.AuthenticatedAt
		info.AuthenticatedAt = &at
	}

	return info
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", uri)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: jsonMIME, Text: string(data)},
	}, nil
}
