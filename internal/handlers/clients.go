package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/controller"
	"github.com/lexfrei/unifi-mcp/internal/unifierr"
)

func (h *Handlers) clientActions() []action.Descriptor {
	stamgr := func(act action.Action, description, cmd, done string) action.Descriptor {
		return action.Descriptor{
			Action:      act,
			Domain:      action.DomainClient,
			Description: description,
			Required:    []action.Param{macParam("Client MAC address")},
			Optional:    []action.Param{siteParam()},
			Handler: func(ctx context.Context, p action.Params) (action.Output, error) {
				payload := map[string]any{"cmd": cmd, "mac": p.String("mac")}
				if cmd == "forget-sta" {
					payload = map[string]any{"cmd": cmd, "macs": []string{p.String("mac")}}
				}

				res, err := h.command(ctx, p, "stamgr", payload)
				if err != nil {
					return action.Output{}, err
				}

				return action.Output{Summary: fmt.Sprintf("%s %s", done, res.MAC), Data: res}, nil
			},
		}
	}

	return []action.Descriptor{
		{
			Action:      action.GetClients,
			Domain:      action.DomainClient,
			Description: "List clients known to the controller",
			Optional: []action.Param{
				siteParam(),
				{Name: "connected_only", Kind: action.KindBool, Default: true, Description: "Only list clients that are currently online"},
			},
			Handler: h.getClients,
		},
		stamgr(action.ReconnectClient, "Force a client to reconnect", "kick-sta", "Reconnect requested for"),
		stamgr(action.BlockClient, "Block a client from the network", "block-sta", "Blocked client"),
		stamgr(action.UnblockClient, "Allow a blocked client back on the network", "unblock-sta", "Unblocked client"),
		stamgr(action.ForgetClient, "Remove a client and its history from the controller", "forget-sta", "Forgot client"),
		{
			Action:      action.SetClientName,
			Domain:      action.DomainClient,
			Description: "Set the alias shown for a client",
			Required: []action.Param{
				macParam("Client MAC address"),
				{Name: "name", Kind: action.KindString, Description: "New alias", Constraints: []action.Constraint{action.NonEmpty()}},
			},
			Optional: []action.Param{siteParam()},
			Handler: func(ctx context.Context, p action.Params) (action.Output, error) {
				return h.updateUser(ctx, p, "name")
			},
		},
		{
			Action:      action.SetClientNote,
			Domain:      action.DomainClient,
			Description: "Set the note stored for a client",
			Required: []action.Param{
				macParam("Client MAC address"),
				{Name: "note", Kind: action.KindString, Description: "Note text", Constraints: []action.Constraint{action.NonEmpty()}},
			},
			Optional: []action.Param{siteParam()},
			Handler: func(ctx context.Context, p action.Params) (action.Output, error) {
				return h.updateUser(ctx, p, "note")
			},
		},
	}
}

func (h *Handlers) getClients(ctx context.Context, p action.Params) (action.Output, error) {
	stations, err := siteList[controller.Station](ctx, h.client, p, "/stat/sta")
	if err != nil {
		return action.Output{}, err
	}

	connectedOnly := p.Bool("connected_only")

	clients := make([]controller.Station, 0, len(stations))
	wired := 0
	for _, s := range stations {
		if connectedOnly && !s.Online() {
			continue
		}
		if s.Wired {
			wired++
		}
		clients = append(clients, s)
	}

	return action.Output{
		Summary: fmt.Sprintf("%d clients (%d wired, %d wireless)", len(clients), wired, len(clients)-wired),
		Data:    clients,
	}, nil
}

// updateUser sets one field of the client's user record, which is looked up
// by MAC because /upd/user needs the record id.
func (h *Handlers) updateUser(ctx context.Context, p action.Params, field string) (action.Output, error) {
	mac := p.String("mac")
	value := p.String(field)

	users, err := siteList[controller.User](ctx, h.client, p, "/list/user")
	if err != nil {
		return action.Output{}, err
	}

	var id string
	for _, u := range users {
		if macEqual(u.MAC, mac) {
			id = u.ID
			break
		}
	}
	if id == "" {
		return action.Output{}, &unifierr.NotFoundError{What: "client", ID: mac}
	}

	updated, err := controller.List[controller.User](ctx, h.client, controller.Request{
		Method: http.MethodPost,
		Path:   "/upd/user/" + url.PathEscape(id),
		Site:   p.Site(),
		Body:   map[string]any{field: value},
	})
	if err != nil {
		return action.Output{}, err
	}

	var data any = map[string]any{"mac": mac, field: value, "user_id": id}
	if len(updated) > 0 {
		data = updated[0]
	}

	return action.Output{Summary: fmt.Sprintf("Client %s %s set to %q", mac, field, value), Data: data}, nil
}
