package mcpserver

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/controller"
	"github.com/lexfrei/unifi-mcp/observability"
)

const (
	uriScheme   = "unifi://"
	defaultSite = "default"

	// SitesURI lists every site; it is not site-scoped.
	SitesURI = uriScheme + "sites"
	// OverviewURI summarizes the default site; OverviewURI + "/{site_name}" any other.
	OverviewURI = uriScheme + "overview"
	// DeviceURITemplate addresses one device by site and MAC.
	DeviceURITemplate = uriScheme + "device/{site_name}/{+mac}"
)

// siteResources are read-only views backed by one site-scoped action. Each
// is served for the default site at unifi://<path> and for any site at
// unifi://<path>/{site_name}.
var siteResources = []struct {
	path        string
	action      action.Action
	name        string
	description string
}{
	{"devices", action.GetDevices, "Devices", "Adopted devices with state, model and firmware"},
	{"clients", action.GetClients, "Clients", "Connected clients"},
	{"dashboard", action.GetDashboard, "Dashboard", "Throughput and latency time series"},
	{"config/networks", action.GetNetworkConfigs, "Networks", "LAN, VLAN and WAN network configurations"},
	{"config/wlans", action.GetWLANConfigs, "Wireless networks", "SSID configurations"},
	{"config/portforward", action.GetPortForwardingRules, "Port forwarding", "Port forwarding rules"},
	{"channels", action.GetWirelessChannels, "Wireless channels", "Channels currently allowed per radio"},
	{"device-tags", action.GetDeviceTags, "Device tags", "Device tags and their members"},
}

// Overview is the unifi://overview document.
type Overview struct {
	Site            string          `json:"site"`
	TotalDevices    int             `json:"total_devices"`
	OnlineDevices   int             `json:"online_devices"`
	DeviceTypes     map[string]int  `json:"device_types"`
	Gateway         *GatewayInfo    `json:"gateway,omitempty"`
	TotalClients    int             `json:"total_clients"`
	WiredClients    int             `json:"wired_clients"`
	WirelessClients int             `json:"wireless_clients"`
	PortForwarding  *PortForwarding `json:"port_forwarding,omitempty"`
}

// GatewayInfo describes the first online gateway of a site.
type GatewayInfo struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	IP      string `json:"ip,omitempty"`
	Version string `json:"version,omitempty"`
	Uptime  int64  `json:"uptime_seconds"`
}

// PortForwarding counts port forwarding rules.
type PortForwarding struct {
	Total   int `json:"total_rules"`
	Enabled int `json:"enabled_rules"`
}

func (s *Server) registerDataResources() {
	s.mcp.AddResource(mcp.NewResource(SitesURI, "Sites",
		mcp.WithResourceDescription("Sites this account can manage"),
		mcp.WithMIMEType(jsonMIME),
	), s.actionResource(action.GetSites, false))

	for _, r := range siteResources {
		uri := uriScheme + r.path

		s.mcp.AddResource(mcp.NewResource(uri, r.name,
			mcp.WithResourceDescription(r.description+" (default site)"),
			mcp.WithMIMEType(jsonMIME),
		), s.actionResource(r.action, false))

		s.mcp.AddResourceTemplate(mcp.NewResourceTemplate(uri+"/{site_name}", r.name+" by site",
			mcp.WithTemplateDescription(r.description),
			mcp.WithTemplateMIMEType(jsonMIME),
		), s.actionResource(r.action, true))
	}

	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate(DeviceURITemplate, "Device",
		mcp.WithTemplateDescription("One device by site and MAC address"),
		mcp.WithTemplateMIMEType(jsonMIME),
	), s.readDevice)

	s.mcp.AddResource(mcp.NewResource(OverviewURI, "Network overview",
		mcp.WithResourceDescription("Device, client and port forwarding counts for the default site"),
		mcp.WithMIMEType(jsonMIME),
	), s.readOverview)

	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate(OverviewURI+"/{site_name}", "Network overview by site",
		mcp.WithTemplateDescription("Device, client and port forwarding counts"),
		mcp.WithTemplateMIMEType(jsonMIME),
	), s.readOverview)
}

// actionResource serves the data of name. With sited, the last URI segment
// is the site; otherwise the default site applies.
func (s *Server) actionResource(name action.Action, sited bool) func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		uri := req.Params.URI

		params := map[string]any{}
		if sited {
			segments, err := uriSegments(uri)
			if err != nil {
				return nil, err
			}
			params[action.SiteParam] = segments[len(segments)-1]
		}

		data, err := s.perform(ctx, uri, name, params)
		if err != nil {
			return nil, err
		}

		return jsonResource(uri, data)
	}
}

func (s *Server) readDevice(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI

	segments, err := uriSegments(uri)
	if err != nil {
		return nil, err
	}
	if len(segments) != 3 {
		return nil, errors.Newf("%s: expected unifi://device/{site_name}/{mac}", uri)
	}

	data, err := s.perform(ctx, uri, action.GetDeviceByMAC, map[string]any{
		action.SiteParam: segments[1],
		"mac":            segments[2],
	})
	if err != nil {
		return nil, err
	}

	return jsonResource(uri, data)
}

func (s *Server) readOverview(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI

	site := defaultSite
	if uri != OverviewURI {
		segments, err := uriSegments(uri)
		if err != nil {
			return nil, err
		}
		site = segments[len(segments)-1]
	}
	params := map[string]any{action.SiteParam: site}

	devices, err := s.perform(ctx, uri, action.GetDevices, params)
	if err != nil {
		return nil, err
	}
	clients, err := s.perform(ctx, uri, action.GetClients, params)
	if err != nil {
		return nil, err
	}

	overview := summarize(site, asSlice[controller.Device](devices), asSlice[controller.Station](clients))

	// Port forwarding is optional; accounts without gateway access cannot read it.
	if rules, err := s.perform(ctx, uri, action.GetPortForwardingRules, params); err == nil {
		overview.PortForwarding = countRules(asSlice[map[string]any](rules))
	} else {
		s.logger.Debug("overview without port forwarding", observability.Field{Key: "error", Value: err.Error()})
	}

	return jsonResource(uri, overview)
}

// perform runs name through the dispatcher and returns its data, turning a
// failed result into an error.
func (s *Server) perform(ctx context.Context, uri string, name action.Action, params map[string]any) (any, error) {
	res := s.dispatcher.Perform(ctx, action.Request{Action: string(name), Params: params})
	if !res.Success {
		return nil, errors.Newf("%s: %s", uri, res.Error)
	}

	return res.Data, nil
}

// uriSegments returns the unescaped path segments after the scheme.
func uriSegments(uri string) ([]string, error) {
	rest, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return nil, errors.Newf("%s is not a %s URI", uri, uriScheme)
	}

	segments := strings.Split(strings.Trim(rest, "/"), "/")
	for i, seg := range segments {
		unescaped, err := url.PathUnescape(seg)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid segment in %s", uri)
		}
		segments[i] = unescaped
	}

	if len(segments) < 2 || segments[len(segments)-1] == "" {
		return nil, errors.Newf("%s is missing a path segment", uri)
	}

	return segments, nil
}

func asSlice[T any](data any) []T {
	items, _ := data.([]T)
	return items
}

func summarize(site string, devices []controller.Device, clients []controller.Station) Overview {
	o := Overview{
		Site:         site,
		TotalDevices: len(devices),
		DeviceTypes:  map[string]int{},
		TotalClients: len(clients),
	}

	for _, d := range devices {
		kind := deviceKind(d.Type)
		o.DeviceTypes[kind]++

		if !d.Online() {
			continue
		}
		o.OnlineDevices++

		if kind == "gateway" && o.Gateway == nil {
			o.Gateway = &GatewayInfo{
				Name:    d.DisplayName(),
				Model:   d.Model,
				IP:      d.IP,
				Version: d.Version,
				Uptime:  d.Uptime,
			}
		}
	}

	for _, c := range clients {
		if c.Wired {
			o.WiredClients++
		}
	}
	o.WirelessClients = o.TotalClients - o.WiredClients

	return o
}

func deviceKind(t string) string {
	switch t {
	case "uap":
		return "access_point"
	case "usw":
		return "switch"
	case "ugw", "udm", "uxg":
		return "gateway"
	default:
		return "other"
	}
}

func countRules(rules []map[string]any) *PortForwarding {
	pf := &PortForwarding{Total: len(rules)}
	for _, r := range rules {
		if enabled, _ := r["enabled"].(bool); enabled {
			pf.Enabled++
		}
	}

	return pf
}
