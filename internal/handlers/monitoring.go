package handlers

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/controller"
)

const (
	speedTestWindow = 30 * 24 * time.Hour
	ipsWindow       = 7 * 24 * time.Hour
	bytesPerMB      = 1024 * 1024
)

var (
	speedTestAttrs = []string{"time", "xput_download", "xput_upload", "latency", "ping", "jitter"}
	ipsAttrs       = []string{"time", "src_ip", "dst_ip", "proto", "app_proto", "signature", "category", "action", "severity", "msg"}
)

func (h *Handlers) monitoringActions() []action.Descriptor {
	site := siteParam()
	mac := macParam("Access point MAC address")

	return []action.Descriptor{
		{
			Action:      action.GetControllerStatus,
			Domain:      action.DomainMonitoring,
			Description: "Show controller version and availability",
			Handler:     h.getControllerStatus,
		},
		{
			Action:      action.GetSiteHealth,
			Domain:      action.DomainMonitoring,
			Description: "Show the health of each subsystem (WAN, LAN, WLAN, VPN)",
			Optional:    []action.Param{site},
			Handler:     h.getSiteHealth,
		},
		{
			Action:      action.GetDashboard,
			Domain:      action.DomainMonitoring,
			Description: "Show dashboard traffic and latency series",
			Optional:    []action.Param{site},
			Handler:     h.listConfig("/stat/dashboard", "dashboard samples"),
		},
		{
			Action:      action.GetEvents,
			Domain:      action.DomainMonitoring,
			Description: "List recent controller events, newest first",
			Optional:    []action.Param{site, limitParam(100, 3000)},
			Handler:     h.getEvents,
		},
		{
			Action:      action.GetAlarms,
			Domain:      action.DomainMonitoring,
			Description: "List controller alarms",
			Optional: []action.Param{
				site,
				{Name: "active_only", Kind: action.KindBool, Default: true, Description: "Hide archived alarms"},
			},
			Handler: h.getAlarms,
		},
		{
			Action:      action.GetDPIStats,
			Domain:      action.DomainMonitoring,
			Description: "Show deep packet inspection traffic totals",
			Optional: []action.Param{
				site,
				{
					Name:        "by_filter",
					Kind:        action.KindString,
					Default:     "by_app",
					Description: "Group by application or by category",
					Constraints: []action.Constraint{action.OneOf("by_app", "by_cat")},
				},
			},
			Handler: h.getDPIStats,
		},
		{
			Action:      action.GetRogueAPs,
			Domain:      action.DomainMonitoring,
			Description: "List neighbouring access points, strongest signal first",
			Optional: []action.Param{
				site,
				limitParam(20, 50),
				{
					Name:        "within_hours",
					Kind:        action.KindInt,
					Default:     24,
					Description: "Only APs seen in the last N hours",
					Constraints: []action.Constraint{action.Min(1)},
				},
			},
			Handler: h.getRogueAPs,
		},
		{
			Action:      action.StartSpectrumScan,
			Domain:      action.DomainMonitoring,
			Description: "Start an RF spectrum scan on an access point",
			Required:    []action.Param{mac},
			Optional:    []action.Param{site},
			Handler:     h.startSpectrumScan,
		},
		{
			Action:      action.GetSpectrumScanState,
			Domain:      action.DomainMonitoring,
			Description: "Show the state and results of an access point's spectrum scan",
			Required:    []action.Param{mac},
			Optional:    []action.Param{site},
			Handler:     h.getSpectrumScanState,
		},
		{
			Action:      action.AuthorizeGuest,
			Domain:      action.DomainMonitoring,
			Description: "Authorize a guest client on the hotspot portal",
			Required:    []action.Param{macParam("Guest client MAC address")},
			Optional: []action.Param{
				site,
				{Name: "minutes", Kind: action.KindInt, Default: 480, Description: "Authorization length", Constraints: []action.Constraint{action.Min(1)}},
				{Name: "up_bandwidth", Kind: action.KindInt, Default: 0, Description: "Upload limit in Kbps, 0 for none", Constraints: []action.Constraint{action.Min(0)}},
				{Name: "down_bandwidth", Kind: action.KindInt, Default: 0, Description: "Download limit in Kbps, 0 for none", Constraints: []action.Constraint{action.Min(0)}},
				{Name: "quota_mb", Kind: action.KindInt, Default: 0, Description: "Transfer quota in MB, 0 for none", Constraints: []action.Constraint{action.Min(0)}},
			},
			Handler: h.authorizeGuest,
		},
		{
			Action:      action.GetSpeedtestResults,
			Domain:      action.DomainMonitoring,
			Description: "List speed test results from the last 30 days, newest last",
			Optional:    []action.Param{site, limitParam(20, 500)},
			Handler:     h.getSpeedtestResults,
		},
		{
			Action:      action.GetIPSEvents,
			Domain:      action.DomainMonitoring,
			Description: "List intrusion prevention events from the last 7 days, newest first",
			Optional:    []action.Param{site, limitParam(50, 1000)},
			Handler:     h.getIPSEvents,
		},
	}
}

// ControllerStatus is the Data of get_controller_status.
type ControllerStatus struct {
	Up      bool           `json:"up"`
	Version string         `json:"server_version"`
	Details map[string]any `json:"details"`
}

func (h *Handlers) getControllerStatus(ctx context.Context, _ action.Params) (action.Output, error) {
	body, err := h.client.Object(ctx, controller.Request{Path: "/status", Scope: controller.ScopeApp})
	if err != nil {
		return action.Output{}, err
	}

	fields := body
	if meta, ok := body["meta"].(map[string]any); ok {
		fields = meta
	}

	status := ControllerStatus{Details: body}
	status.Up, _ = fields["up"].(bool)
	status.Version, _ = fields["server_version"].(string)
	if status.Version == "" {
		status.Version = "unknown"
	}

	state := "down"
	if status.Up {
		state = "up"
	}

	return action.Output{
		Summary: fmt.Sprintf("Controller %s, version %s", state, status.Version),
		Data:    status,
	}, nil
}

func (h *Handlers) getSiteHealth(ctx context.Context, p action.Params) (action.Output, error) {
	health, err := siteList[controller.Health](ctx, h.client, p, "/stat/health")
	if err != nil {
		return action.Output{}, err
	}

	parts := make([]string, 0, len(health))
	for _, s := range health {
		parts = append(parts, s.Subsystem+" "+s.Status)
	}

	summary := "no subsystems reported"
	if len(parts) > 0 {
		summary = strings.Join(parts, ", ")
	}

	return action.Output{Summary: summary, Data: health}, nil
}

func (h *Handlers) getEvents(ctx context.Context, p action.Params) (action.Output, error) {
	limit := p.Int("limit")

	events, err := sitePost[controller.Event](ctx, h.client, p, "/stat/event", map[string]any{"_limit": limit})
	if err != nil {
		return action.Output{}, err
	}

	slices.SortStableFunc(events, func(a, b controller.Event) int { return cmp.Compare(b.Time, a.Time) })
	if len(events) > limit {
		events = events[:limit]
	}

	return action.Output{Summary: fmt.Sprintf("%d events", len(events)), Data: events}, nil
}

func (h *Handlers) getAlarms(ctx context.Context, p action.Params) (action.Output, error) {
	alarms, err := siteList[controller.Alarm](ctx, h.client, p, "/list/alarm")
	if err != nil {
		return action.Output{}, err
	}

	if p.Bool("active_only") {
		alarms = slices.DeleteFunc(alarms, func(a controller.Alarm) bool { return a.Archived })
	}

	return action.Output{Summary: fmt.Sprintf("%d alarms", len(alarms)), Data: alarms}, nil
}

// DPIStat is one traffic total of get_dpi_stats.
type DPIStat struct {
	Name    string `json:"name"`
	TxBytes int64  `json:"tx_bytes"`
	RxBytes int64  `json:"rx_bytes"`
	Total   int64  `json:"total_bytes"`
}

func (h *Handlers) getDPIStats(ctx context.Context, p action.Params) (action.Output, error) {
	raw, err := siteList[map[string]any](ctx, h.client, p, "/stat/dpi")
	if err != nil {
		return action.Output{}, err
	}

	key, fallback := "app", "cat"
	if p.String("by_filter") == "by_cat" {
		key, fallback = "cat", "app"
	}

	stats := make([]DPIStat, 0, len(raw))
	for _, entry := range raw {
		name := label(entry[key])
		if name == "" {
			name = label(entry[fallback])
		}
		if name == "" {
			name = "unknown"
		}

		tx, rx := number(entry["tx_bytes"]), number(entry["rx_bytes"])
		stats = append(stats, DPIStat{Name: name, TxBytes: tx, RxBytes: rx, Total: tx + rx})
	}

	slices.SortStableFunc(stats, func(a, b DPIStat) int { return cmp.Compare(b.Total, a.Total) })

	summary := fmt.Sprintf("%d entries", len(stats))
	if len(stats) > 0 {
		summary += fmt.Sprintf(", top %s with %s", stats[0].Name, formatBytes(stats[0].Total))
	}

	return action.Output{Summary: summary, Data: stats}, nil
}

// RogueAPView is a RogueAP with its threat rating.
type RogueAPView struct {
	controller.RogueAP

	Threat string `json:"threat"`
}

const unknownRSSI = -100

// Threat rates a neighbouring AP by signal strength in dBm.
func Threat(rssi int) string {
	switch {
	case rssi > -60:
		return "High"
	case rssi > -80:
		return "Medium"
	default:
		return "Low"
	}
}

func (h *Handlers) getRogueAPs(ctx context.Context, p action.Params) (action.Output, error) {
	limit := p.Int("limit")

	aps, err := sitePost[controller.RogueAP](ctx, h.client, p, "/stat/rogueap", map[string]any{"within": p.Int("within_hours")})
	if err != nil {
		return action.Output{}, err
	}

	rssi := func(ap controller.RogueAP) int {
		if ap.RSSI == nil {
			return unknownRSSI
		}
		return *ap.RSSI
	}

	slices.SortStableFunc(aps, func(a, b controller.RogueAP) int { return cmp.Compare(rssi(b), rssi(a)) })

	total := len(aps)
	if total > limit {
		aps = aps[:limit]
	}

	views := make([]RogueAPView, 0, len(aps))
	for _, ap := range aps {
		views = append(views, RogueAPView{RogueAP: ap, Threat: Threat(rssi(ap))})
	}

	return action.Output{
		Summary: fmt.Sprintf("Showing %d of %d rogue APs, strongest first", len(views), total),
		Data:    views,
	}, nil
}

func (h *Handlers) startSpectrumScan(ctx context.Context, p action.Params) (action.Output, error) {
	res, err := h.command(ctx, p, "devmgr", map[string]any{"cmd": "spectrum-scan", "mac": p.String("mac")})
	if err != nil {
		return action.Output{}, err
	}

	return action.Output{Summary: "Spectrum scan started on " + res.MAC, Data: res}, nil
}

// SpectrumScan is the Data of get_spectrum_scan_state.
type SpectrumScan struct {
	MAC      string           `json:"mac"`
	ScanData []map[string]any `json:"scan_data"`
}

func (h *Handlers) getSpectrumScanState(ctx context.Context, p action.Params) (action.Output, error) {
	mac := p.String("mac")

	data, err := siteList[map[string]any](ctx, h.client, p, "/stat/spectrum-scan/"+mac)
	if err != nil {
		return action.Output{}, err
	}

	summary := "No spectrum data for " + mac
	if len(data) > 0 {
		summary = "Spectrum data available for " + mac
	}

	return action.Output{Summary: summary, Data: SpectrumScan{MAC: mac, ScanData: data}}, nil
}

func (h *Handlers) authorizeGuest(ctx context.Context, p action.Params) (action.Output, error) {
	var args struct {
		MAC     string `mapstructure:"mac"`
		Minutes int    `mapstructure:"minutes"`
		Up      int    `mapstructure:"up_bandwidth"`
		Down    int    `mapstructure:"down_bandwidth"`
		QuotaMB int    `mapstructure:"quota_mb"`
	}
	if err := p.Decode(&args); err != nil {
		return action.Output{}, err
	}

	payload := map[string]any{"cmd": "authorize-guest", "mac": args.MAC, "minutes": args.Minutes}
	if args.Up > 0 {
		payload["up"] = args.Up
	}
	if args.Down > 0 {
		payload["down"] = args.Down
	}
	if args.QuotaMB > 0 {
		payload["bytes"] = int64(args.QuotaMB) * bytesPerMB
	}

	res, err := h.command(ctx, p, "stamgr", payload)
	if err != nil {
		return action.Output{}, err
	}

	return action.Output{
		Summary: fmt.Sprintf("Guest %s authorized for %d minutes", args.MAC, args.Minutes),
		Data:    res,
	}, nil
}

func (h *Handlers) getSpeedtestResults(ctx context.Context, p action.Params) (action.Output, error) {
	limit := p.Int("limit")
	end := h.now()

	results, err := sitePost[controller.SpeedTest](ctx, h.client, p, "/stat/report/archive.speedtest", map[string]any{
		"start": end.Add(-speedTestWindow).UnixMilli(),
		"end":   end.UnixMilli(),
		"attrs": speedTestAttrs,
	})
	if err != nil {
		return action.Output{}, err
	}

	if len(results) > limit {
		results = results[len(results)-limit:]
	}

	summary := fmt.Sprintf("%d speed tests", len(results))
	if n := len(results); n > 0 {
		last := results[n-1]
		summary += fmt.Sprintf(", latest %.1f/%.1f Mbps down/up, %.0f ms", last.Download, last.Upload, last.Latency)
	}

	return action.Output{Summary: summary, Data: results}, nil
}

func (h *Handlers) getIPSEvents(ctx context.Context, p action.Params) (action.Output, error) {
	limit := p.Int("limit")
	end := h.now()

	events, err := sitePost[controller.IPSEvent](ctx, h.client, p, "/stat/ips/event", map[string]any{
		"start": end.Add(-ipsWindow).UnixMilli(),
		"end":   end.UnixMilli(),
		"attrs": ipsAttrs,
	})
	if err != nil {
		return action.Output{}, err
	}

	slices.SortStableFunc(events, func(a, b controller.IPSEvent) int { return cmp.Compare(b.Time, a.Time) })
	if len(events) > limit {
		events = events[:limit]
	}

	return action.Output{Summary: fmt.Sprintf("%d IPS events in the last 7 days", len(events)), Data: events}, nil
}

func label(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%d", int64(t))
	default:
		return ""
	}
}

func number(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
