package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/controller"
	"github.com/lexfrei/unifi-mcp/internal/handlers"
	"github.com/lexfrei/unifi-mcp/internal/session"
	"github.com/lexfrei/unifi-mcp/internal/testutil"
	"github.com/lexfrei/unifi-mcp/internal/unifierr"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newDispatcher(t *testing.T, mock *testutil.MockController) *action.Dispatcher {
	t.Helper()

	manager := session.NewManager(session.Config{Profile: mock.Profile()})
	client, err := controller.New(controller.Config{Sessions: manager})
	require.NoError(t, err)

	reg, err := handlers.NewRegistry(client, handlers.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	return action.NewDispatcher(reg)
}

func perform(t *testing.T, d *action.Dispatcher, name string, params map[string]any) action.Result {
	t.Helper()

	return d.Perform(context.Background(), action.Request{Action: name, Params: params})
}

func TestNewRegistryCoversEveryAction(t *testing.T) {
	t.Parallel()

	_, err := handlers.NewRegistry(nil)
	require.Error(t, err)

	mock := testutil.NewMockController(t)
	d := newDispatcher(t, mock)

	siteless := map[action.Action]bool{action.GetSites: true, action.GetControllerStatus: true}

	for _, desc := range d.Registry().Descriptors() {
		assert.NotEmpty(t, desc.Description, desc.Action)

		hasSite := false
		for _, p := range desc.Optional {
			if p.Name == action.SiteParam {
				hasSite = true
			}
		}
		assert.Equal(t, !siteless[desc.Action], hasSite, "site_name on %s", desc.Action)
	}
}

func TestUnknownAction(t *testing.T) {
	t.Parallel()

	d := newDispatcher(t, testutil.NewMockController(t))

	res := perform(t, d, "explode", nil)
	assert.False(t, res.Success)
	assert.Equal(t, string(unifierr.KindUnknownAction), res.ErrorKind)
}

func TestMissingMAC(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	d := newDispatcher(t, mock)

	res := perform(t, d, "restart_device", map[string]any{})
	assert.False(t, res.Success)
	assert.Equal(t, string(unifierr.KindMissingParameter), res.ErrorKind)
	assert.Zero(t, mock.Logins(), "validation fails before any controller call")
}

func TestGetDevices(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/branch/stat/device", []map[string]any{
		{"_id": "1", "mac": "aa:bb:cc:dd:ee:01", "name": "Gateway", "state": 1},
		{"_id": "2", "mac": "aa:bb:cc:dd:ee:02", "state": 0},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_devices", map[string]any{"site_name": "branch"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "2 devices, 1 online", res.Summary)

	devices, ok := res.Data.([]controller.Device)
	require.True(t, ok)
	assert.Len(t, devices, 2)
}

func TestGetDeviceByMAC(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/stat/device", []map[string]any{
		{"_id": "1", "mac": "AA:BB:CC:DD:EE:01", "name": "Gateway", "model": "UDMPRO", "state": 1},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_device_by_mac", map[string]any{"mac": "aabb.ccdd.ee01"})
	require.True(t, res.Success, res.Error)

	device, ok := res.Data.(controller.Device)
	require.True(t, ok)
	assert.Equal(t, "Gateway", device.Name)

	res = perform(t, d, "get_device_by_mac", map[string]any{"mac": "aa:bb:cc:dd:ee:99"})
	assert.False(t, res.Success)
	assert.Equal(t, string(unifierr.KindNotFound), res.ErrorKind)
	assert.Contains(t, res.Error, "aa:bb:cc:dd:ee:99")
}

func TestRestartDeviceNormalizesMAC(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/cmd/devmgr", nil)
	d := newDispatcher(t, mock)

	res := perform(t, d, "restart_device", map[string]any{"mac": "AA-BB-CC-DD-EE-FF"})
	require.True(t, res.Success, res.Error)

	last := mock.LastRequest()
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/api/s/default/cmd/devmgr", last.Path)
	assert.Equal(t, map[string]any{"cmd": "restart", "mac": "aa:bb:cc:dd:ee:ff"}, last.Body)
}

func TestLocateDevice(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/cmd/devmgr", nil)
	d := newDispatcher(t, mock)

	res := perform(t, d, "locate_device", map[string]any{"mac": "aa:bb:cc:dd:ee:ff"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "set-locate", mock.LastRequest().Body["cmd"])

	res = perform(t, d, "locate_device", map[string]any{"mac": "aa:bb:cc:dd:ee:ff", "enabled": false})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "unset-locate", mock.LastRequest().Body["cmd"])
}

func TestBlockClientInBodyFailure(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.Handle("/api/s/default/cmd/stamgr", func(w http.ResponseWriter, _ *http.Request) {
		testutil.WriteEnvelope(w, http.StatusOK, "error", "api.err.UnknownStation", nil)
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "block_client", map[string]any{"mac": "aa:bb:cc:dd:ee:ff"})
	assert.False(t, res.Success)
	assert.Equal(t, string(unifierr.KindController), res.ErrorKind)
	assert.Contains(t, res.Error, "api.err.UnknownStation")
}

func TestStationCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action string
		body   map[string]any
	}{
		{"reconnect_client", map[string]any{"cmd": "kick-sta", "mac": "aa:bb:cc:dd:ee:ff"}},
		{"block_client", map[string]any{"cmd": "block-sta", "mac": "aa:bb:cc:dd:ee:ff"}},
		{"unblock_client", map[string]any{"cmd": "unblock-sta", "mac": "aa:bb:cc:dd:ee:ff"}},
		{"forget_client", map[string]any{"cmd": "forget-sta", "macs": []any{"aa:bb:cc:dd:ee:ff"}}},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			t.Parallel()

			mock := testutil.NewMockController(t)
			mock.HandleData("/api/s/default/cmd/stamgr", nil)
			d := newDispatcher(t, mock)

			res := perform(t, d, tt.action, map[string]any{"mac": "AA:BB:CC:DD:EE:FF"})
			require.True(t, res.Success, res.Error)
			assert.Equal(t, tt.body, mock.LastRequest().Body)
		})
	}
}

func TestGetClients(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t, testutil.WithLegacy())
	mock.HandleData("/api/s/default/stat/sta", []map[string]any{
		{"mac": "aa:bb:cc:dd:ee:01", "hostname": "laptop"},
		{"mac": "aa:bb:cc:dd:ee:02", "is_wired": true, "is_online": true},
		{"mac": "aa:bb:cc:dd:ee:03", "is_online": false},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_clients", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "2 clients (1 wired, 1 wireless)", res.Summary)

	res = perform(t, d, "get_clients", map[string]any{"connected_only": false})
	require.True(t, res.Success, res.Error)

	clients, ok := res.Data.([]controller.Station)
	require.True(t, ok)
	assert.Len(t, clients, 3)
}

func TestSetClientName(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/list/user", []map[string]any{
		{"_id": "u1", "mac": "aa:bb:cc:dd:ee:01"},
		{"_id": "u2", "mac": "aa:bb:cc:dd:ee:02"},
	})
	mock.HandleData("/api/s/default/upd/user/u2", []map[string]any{
		{"_id": "u2", "mac": "aa:bb:cc:dd:ee:02", "name": "Printer"},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "set_client_name", map[string]any{"mac": "AA-BB-CC-DD-EE-02", "name": "Printer"})
	require.True(t, res.Success, res.Error)

	last := mock.LastRequest()
	assert.Equal(t, "/api/s/default/upd/user/u2", last.Path)
	assert.Equal(t, map[string]any{"name": "Printer"}, last.Body)

	res = perform(t, d, "set_client_note", map[string]any{"mac": "aa:bb:cc:dd:ee:09", "note": "unknown"})
	assert.False(t, res.Success)
	assert.Equal(t, string(unifierr.KindNotFound), res.ErrorKind)
}

func TestGetSitesUsesControllerScope(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/self/sites", []map[string]any{{"_id": "s1", "name": "default", "desc": "Default"}})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_sites", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "1 sites", res.Summary)
}

func TestConfigCollections(t *testing.T) {
	t.Parallel()

	paths := map[string]string{
		"get_wlan_configs":          "/api/s/default/rest/wlanconf",
		"get_network_configs":       "/api/s/default/rest/networkconf",
		"get_port_configs":          "/api/s/default/rest/portconf",
		"get_port_forwarding_rules": "/api/s/default/list/portforward",
		"get_firewall_rules":        "/api/s/default/rest/firewallrule",
		"get_firewall_groups":       "/api/s/default/rest/firewallgroup",
		"get_static_routes":         "/api/s/default/rest/routing",
		"get_dashboard":             "/api/s/default/stat/dashboard",
		"get_device_tags":           "/api/s/default/rest/tag",
		"get_wireless_channels":     "/api/s/default/stat/current-channel",
	}

	mock := testutil.NewMockController(t)
	for _, path := range paths {
		mock.HandleData(path, []map[string]any{{"_id": "x"}})
	}
	d := newDispatcher(t, mock)

	for name, path := range paths {
		res := perform(t, d, name, nil)
		require.True(t, res.Success, "%s: %s", name, res.Error)
		assert.Equal(t, path, mock.LastRequest().Path, name)
	}
}

func TestGetControllerStatus(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.Handle("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"meta":{"rc":"ok","up":true,"server_version":"9.0.114"},"data":[]}`))
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_controller_status", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Controller up, version 9.0.114", res.Summary)
}

func TestGetEventsDefaultLimit(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/stat/event", []map[string]any{
		{"_id": "e1", "key": "EVT_AP_Connected", "time": 1000},
		{"_id": "e2", "key": "EVT_AP_Lost", "time": 3000},
		{"_id": "e3", "key": "EVT_SW_Connected", "time": 2000},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_events", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{"_limit": float64(100)}, mock.LastRequest().Body)

	events, ok := res.Data.([]controller.Event)
	require.True(t, ok)
	require.Len(t, events, 3)
	assert.Equal(t, "e2", events[0].ID, "newest first")

	res = perform(t, d, "get_events", map[string]any{"limit": 2})
	require.True(t, res.Success, res.Error)
	events, ok = res.Data.([]controller.Event)
	require.True(t, ok)
	assert.Len(t, events, 2)
}

func TestGetAlarms(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/list/alarm", []map[string]any{
		{"_id": "a1", "key": "EVT_GW_WANTransition", "archived": false},
		{"_id": "a2", "key": "EVT_AP_Lost", "archived": true},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_alarms", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "1 alarms", res.Summary)

	res = perform(t, d, "get_alarms", map[string]any{"active_only": "false"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "2 alarms", res.Summary)
}

func TestGetDPIStats(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/stat/dpi", []map[string]any{
		{"app": "youtube", "cat": "streaming", "tx_bytes": 100, "rx_bytes": 4000},
		{"app": "ssh", "cat": "remote", "tx_bytes": 10, "rx_bytes": 20},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_dpi_stats", map[string]any{"by_filter": "by_cat"})
	require.True(t, res.Success, res.Error)

	stats, ok := res.Data.([]handlers.DPIStat)
	require.True(t, ok)
	require.Len(t, stats, 2)
	assert.Equal(t, handlers.DPIStat{Name: "streaming", TxBytes: 100, RxBytes: 4000, Total: 4100}, stats[0])

	res = perform(t, d, "get_dpi_stats", map[string]any{"by_filter": "by_user"})
	assert.False(t, res.Success)
	assert.Equal(t, string(unifierr.KindInvalidParameter), res.ErrorKind)
}

func TestGetRogueAPs(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/stat/rogueap", []map[string]any{
		{"bssid": "weak", "rssi": -85},
		{"bssid": "strong", "rssi": -50},
		{"bssid": "unknown"},
		{"bssid": "medium", "rssi": -70},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_rogue_aps", map[string]any{"limit": 2})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{"within": float64(24)}, mock.LastRequest().Body)
	assert.Equal(t, "Showing 2 of 4 rogue APs, strongest first", res.Summary)

	views, ok := res.Data.([]handlers.RogueAPView)
	require.True(t, ok)
	require.Len(t, views, 2)
	assert.Equal(t, "strong", views[0].BSSID)
	assert.Equal(t, "High", views[0].Threat)
	assert.Equal(t, "medium", views[1].BSSID)
	assert.Equal(t, "Medium", views[1].Threat)

	res = perform(t, d, "get_rogue_aps", map[string]any{"limit": 51})
	assert.Equal(t, string(unifierr.KindInvalidParameter), res.ErrorKind)
}

func TestThreat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "High", handlers.Threat(-59))
	assert.Equal(t, "Medium", handlers.Threat(-60))
	assert.Equal(t, "Medium", handlers.Threat(-79))
	assert.Equal(t, "Low", handlers.Threat(-80))
}

func TestSpectrumScan(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/cmd/devmgr", nil)
	mock.HandleData("/api/s/default/stat/spectrum-scan/aa:bb:cc:dd:ee:ff", []map[string]any{{"spectrum_scanning": false}})
	d := newDispatcher(t, mock)

	res := perform(t, d, "start_spectrum_scan", map[string]any{"mac": "AABBCCDDEEFF"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{"cmd": "spectrum-scan", "mac": "aa:bb:cc:dd:ee:ff"}, mock.LastRequest().Body)

	res = perform(t, d, "get_spectrum_scan_state", map[string]any{"mac": "AABBCCDDEEFF"})
	require.True(t, res.Success, res.Error)

	scan, ok := res.Data.(handlers.SpectrumScan)
	require.True(t, ok)
	assert.Len(t, scan.ScanData, 1)
}

func TestAuthorizeGuest(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/cmd/stamgr", nil)
	d := newDispatcher(t, mock)

	res := perform(t, d, "authorize_guest", map[string]any{"mac": "aa:bb:cc:dd:ee:ff"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{
		"cmd":     "authorize-guest",
		"mac":     "aa:bb:cc:dd:ee:ff",
		"minutes": float64(480),
	}, mock.LastRequest().Body)

	res = perform(t, d, "authorize_guest", map[string]any{
		"mac": "aa:bb:cc:dd:ee:ff", "minutes": 60, "up_bandwidth": 512, "down_bandwidth": 2048, "quota_mb": 100,
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{
		"cmd":     "authorize-guest",
		"mac":     "aa:bb:cc:dd:ee:ff",
		"minutes": float64(60),
		"up":      float64(512),
		"down":    float64(2048),
		"bytes":   float64(100 * 1024 * 1024),
	}, mock.LastRequest().Body)

	res = perform(t, d, "authorize_guest", map[string]any{"mac": "aa:bb:cc:dd:ee:ff", "minutes": 0})
	assert.Equal(t, string(unifierr.KindInvalidParameter), res.ErrorKind)
}

func TestGetSpeedtestResults(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/stat/report/archive.speedtest", []map[string]any{
		{"time": 1, "xput_download": 100.0, "xput_upload": 10.0, "latency": 12},
		{"time": 2, "xput_download": 200.0, "xput_upload": 20.0, "latency": 8},
		{"time": 3, "xput_download": 300.0, "xput_upload": 30.0, "latency": 5},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_speedtest_results", map[string]any{"limit": 2})
	require.True(t, res.Success, res.Error)

	body := mock.LastRequest().Body
	assert.InDelta(t, float64(fixedNow.UnixMilli()), body["end"], 0)
	assert.InDelta(t, float64(fixedNow.Add(-30*24*time.Hour).UnixMilli()), body["start"], 0)
	assert.Len(t, body["attrs"], 6)

	results, ok := res.Data.([]controller.SpeedTest)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].Time)
	assert.Equal(t, int64(3), results[1].Time)
	assert.Contains(t, res.Summary, "latest 300.0/30.0 Mbps")
}

func TestGetIPSEvents(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/stat/ips/event", []map[string]any{
		{"time": 10, "src_ip": "10.0.0.1", "severity": 2},
		{"time": 30, "src_ip": "10.0.0.3", "severity": "high"},
		{"time": 20, "src_ip": "10.0.0.2"},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_ips_events", map[string]any{"limit": 2})
	require.True(t, res.Success, res.Error)

	body := mock.LastRequest().Body
	assert.InDelta(t, float64(fixedNow.Add(-7*24*time.Hour).UnixMilli()), body["start"], 0)

	events, ok := res.Data.([]controller.IPSEvent)
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, "10.0.0.3", events[0].SourceIP)
	assert.Equal(t, "10.0.0.2", events[1].SourceIP)
}

func TestActionSurvivesExpiredSession(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	mock.HandleData("/api/s/default/stat/health", []map[string]any{
		{"subsystem": "wan", "status": "ok"},
		{"subsystem": "wlan", "status": "warning"},
	})
	d := newDispatcher(t, mock)

	res := perform(t, d, "get_site_health", nil)
	require.True(t, res.Success, res.Error)

	mock.ExpireSessions()

	res = perform(t, d, "get_site_health", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "wan ok, wlan warning", res.Summary)
	assert.Equal(t, 2, mock.Logins())
}
