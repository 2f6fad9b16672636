// Package action maps action names to validated handler invocations.
//
// The set of actions is closed: every Action constant must be registered
// exactly once, which NewRegistry checks when the registry is built.
package action

// Action names one operation callable through Dispatcher.Perform.
type Action string

// Device actions.
const (
	GetDevices     Action = "get_devices"
	GetDeviceByMAC Action = "get_device_by_mac"
	RestartDevice  Action = "restart_device"
	LocateDevice   Action = "locate_device"
	GetDeviceTags  Action = "get_device_tags"
)

// Client actions.
const (
	GetClients      Action = "get_clients"
	ReconnectClient Action = "reconnect_client"
	BlockClient     Action = "block_client"
	UnblockClient   Action = "unblock_client"
	ForgetClient    Action = "forget_client"
	SetClientName   Action = "set_client_name"
	SetClientNote   Action = "set_client_note"
)

// Network configuration actions.
const (
	GetSites               Action = "get_sites"
	GetWLANConfigs         Action = "get_wlan_configs"
	GetNetworkConfigs      Action = "get_network_configs"
	GetPortConfigs         Action = "get_port_configs"
	GetPortForwardingRules Action = "get_port_forwarding_rules"
	GetFirewallRules       Action = "get_firewall_rules"
	GetFirewallGroups      Action = "get_firewall_groups"
	GetStaticRoutes        Action = "get_static_routes"
)

// Monitoring actions.
const (
	GetControllerStatus  Action = "get_controller_status"
	GetSiteHealth        Action = "get_site_health"
	GetDashboard         Action = "get_dashboard"
	GetEvents            Action = "get_events"
	GetAlarms            Action = "get_alarms"
	GetDPIStats          Action = "get_dpi_stats"
	GetRogueAPs          Action = "get_rogue_aps"
	StartSpectrumScan    Action = "start_spectrum_scan"
	GetSpectrumScanState Action = "get_spectrum_scan_state"
	AuthorizeGuest       Action = "authorize_guest"
	GetSpeedtestResults  Action = "get_speedtest_results"
	GetIPSEvents         Action = "get_ips_events"
	GetWirelessChannels  Action = "get_wireless_channels"
)

// All returns every action, grouped by domain.
func All() []Action {
	return []Action{
		GetDevices, GetDeviceByMAC, RestartDevice, LocateDevice, GetDeviceTags,

		GetClients, ReconnectClient, BlockClient, UnblockClient, ForgetClient,
		SetClientName, SetClientNote,

		GetSites, GetWLANConfigs, GetNetworkConfigs, GetPortConfigs,
		GetPortForwardingRules, GetFirewallRules, GetFirewallGroups, GetStaticRoutes,

		GetControllerStatus, GetSiteHealth, GetDashboard, GetEvents, GetAlarms,
		GetDPIStats, GetRogueAPs, StartSpectrumScan, GetSpectrumScanState,
		AuthorizeGuest, GetSpeedtestResults, GetIPSEvents, GetWirelessChannels,
	}
}

// Domain groups related actions.
type Domain string

// Domains.
const (
	DomainDevice     Domain = "device"
	DomainClient     Domain = "client"
	DomainNetwork    Domain = "network"
	DomainMonitoring Domain = "monitoring"
)
