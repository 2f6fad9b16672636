package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/observability"
)

// ToolName is the single MCP tool this server registers.
const ToolName = "unifi"

const actionArg = "action"

// buildTool describes the tool's arguments: the action name plus the union
// of every parameter any action declares.
func buildTool(reg *action.Registry) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Manage a UniFi Network controller. Pick an action; " +
			"each action uses only the parameters it declares. " +
			"Read unifi://actions for the per-action contract."),
		mcp.WithString(actionArg,
			mcp.Required(),
			mcp.Description("Operation to perform"),
			mcp.Enum(reg.Names()...),
		),
	}

	type usage struct {
		param   action.Param
		actions []string
	}

	var order []string
	params := map[string]*usage{}

	for _, d := range reg.Descriptors() {
		for _, p := range append(append([]action.Param(nil), d.Required...), d.Optional...) {
			u, ok := params[p.Name]
			if !ok {
				u = &usage{param: p}
				params[p.Name] = u
				order = append(order, p.Name)
			}
			u.actions = append(u.actions, string(d.Action))
		}
	}

	for _, name := range order {
		u := params[name]

		desc := u.param.Description
		if len(u.actions) <= 4 {
			desc += " (" + strings.Join(u.actions, ", ") + ")"
		}

		switch u.param.Kind {
		case action.KindInt:
			opts = append(opts, mcp.WithNumber(name, mcp.Description(desc)))
		case action.KindBool:
			opts = append(opts, mcp.WithBoolean(name, mcp.Description(desc)))
		default:
			opts = append(opts, mcp.WithString(name, mcp.Description(desc)))
		}
	}

	return mcp.NewTool(ToolName, opts...)
}

func (s *Server) handleTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	name, _ := args[actionArg].(string)

	params := make(map[string]any, len(args))
	for k, v := range args {
		if k != actionArg {
			params[k] = v
		}
	}

	res := s.dispatcher.Perform(ctx, action.Request{Action: name, Params: params})

	return toolResult(res, s.logger), nil
}

func toolResult(res action.Result, logger observability.Logger) *mcp.CallToolResult {
	text := res.Summary
	if !res.Success {
		text = "Error: " + res.Error
	}

	content := []mcp.Content{mcp.NewTextContent(text)}

	if res.Success && res.Data != nil {
		data, err := json.MarshalIndent(res.Data, "", "  ")
		if err != nil {
			logger.Warn("failed to encode action data", observability.Field{Key: "error", Value: err.Error()})
		} else {
			content = append(content, mcp.NewTextContent(string(data)))
		}
	}

	return &mcp.CallToolResult{
		Content:           content,
		StructuredContent: res,
		IsError:           !res.Success,
	}
}
