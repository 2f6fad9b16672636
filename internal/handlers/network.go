package handlers

import (
	"context"
	"fmt"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/controller"
)

// configCollections are the read-only site lists passed through as-is, keyed by action.
var configCollections = []struct {
	action      action.Action
	domain      action.Domain
	path        string
	noun        string
	description string
}{
	{action.GetWLANConfigs, action.DomainNetwork, "/rest/wlanconf", "wireless networks", "List wireless network (SSID) configurations"},
	{action.GetNetworkConfigs, action.DomainNetwork, "/rest/networkconf", "networks", "List LAN, VLAN and WAN network configurations"},
	{action.GetPortConfigs, action.DomainNetwork, "/rest/portconf", "port profiles", "List switch port profiles"},
	{action.GetPortForwardingRules, action.DomainNetwork, "/list/portforward", "port forwarding rules", "List port forwarding rules"},
	{action.GetFirewallRules, action.DomainNetwork, "/rest/firewallrule", "firewall rules", "List firewall rules"},
	{action.GetFirewallGroups, action.DomainNetwork, "/rest/firewallgroup", "firewall groups", "List firewall address and port groups"},
	{action.GetStaticRoutes, action.DomainNetwork, "/rest/routing", "static routes", "List static routes"},
	{action.GetDeviceTags, action.DomainDevice, "/rest/tag", "device tags", "List device tags and their members"},
	{action.GetWirelessChannels, action.DomainMonitoring, "/stat/current-channel", "channel entries", "List the wireless channels currently allowed per radio"},
}

func (h *Handlers) networkActions() []action.Descriptor {
	descs := []action.Descriptor{
		{
			Action:      action.GetSites,
			Domain:      action.DomainNetwork,
			Description: "List the sites this account can manage",
			Handler:     h.getSites,
		},
	}

	for _, c := range configCollections {
		descs = append(descs, action.Descriptor{
			Action:      c.action,
			Domain:      c.domain,
			Description: c.description,
			Optional:    []action.Param{siteParam()},
			Handler:     h.listConfig(c.path, c.noun),
		})
	}

	return descs
}

func (h *Handlers) getSites(ctx context.Context, _ action.Params) (action.Output, error) {
	sites, err := controller.List[controller.Site](ctx, h.client, controller.Request{
		Path:  "/self/sites",
		Scope: controller.ScopeController,
	})
	if err != nil {
		return action.Output{}, err
	}

	return action.Output{Summary: fmt.Sprintf("%d sites", len(sites)), Data: sites}, nil
}

// listConfig returns a handler for a configuration collection. The entries
// are passed through undecoded; their shape varies across controller versions.
func (h *Handlers) listConfig(path, noun string) action.Handler {
	return func(ctx context.Context, p action.Params) (action.Output, error) {
		items, err := siteList[map[string]any](ctx, h.client, p, path)
		if err != nil {
			return action.Output{}, err
		}

		return action.Output{Summary: fmt.Sprintf("%d %s", len(items), noun), Data: items}, nil
	}
}
