package controller

// The types below decode the fields of controller objects this server
// reports. Controllers return many more fields; unknown ones are dropped.

// Site is a controller site (/self/sites).
type Site struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"desc"`
	Role        string `json:"role,omitempty"`
}

// Device is an adopted UniFi device (/stat/device).
type Device struct {
	ID       string `json:"_id"`
	MAC      string `json:"mac"`
	Name     string `json:"name,omitempty"`
	Model    string `json:"model"`
	Type     string `json:"type"`
	IP       string `json:"ip,omitempty"`
	Version  string `json:"version,omitempty"`
	State    int    `json:"state"`
	Adopted  bool   `json:"adopted"`
	Uptime   int64  `json:"uptime,omitempty"`
	Clients  int    `json:"num_sta,omitempty"`
	Locating bool   `json:"locating,omitempty"`
}

// DeviceStateConnected is Device.State for an online device.
const DeviceStateConnected = 1

// Online reports whether the device is connected.
func (d Device) Online() bool { return d.State == DeviceStateConnected }

// DisplayName returns the configured name or the MAC.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}

	return d.MAC
}

// Station is a client seen by the controller (/stat/sta).
type Station struct {
	ID       string `json:"_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	MAC      string `json:"mac"`
	Name     string `json:"name,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Note     string `json:"note,omitempty"`
	IP       string `json:"ip,omitempty"`
	OUI      string `json:"oui,omitempty"`
	Network  string `json:"network,omitempty"`
	ESSID    string `json:"essid,omitempty"`
	Wired    bool   `json:"is_wired"`
	Guest    bool   `json:"is_guest"`
	Blocked  bool   `json:"blocked,omitempty"`
	Signal   int    `json:"signal,omitempty"`
	Uptime   int64  `json:"uptime,omitempty"`
	RxBytes  int64  `json:"rx_bytes,omitempty"`
	TxBytes  int64  `json:"tx_bytes,omitempty"`
	LastSeen int64  `json:"last_seen,omitempty"`

	// IsOnline is absent on most controllers; absent means online.
	IsOnline *bool `json:"is_online,omitempty"`
}

// Online reports whether the client is currently connected.
func (s Station) Online() bool { return s.IsOnline == nil || *s.IsOnline }

// DisplayName returns the alias, then the hostname, then the MAC.
func (s Station) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Hostname != "":
		return s.Hostname
	default:
		return s.MAC
	}
}

// User is a known client record (/list/user), the target of alias and note updates.
type User struct {
	ID       string `json:"_id"`
	MAC      string `json:"mac"`
	Name     string `json:"name,omitempty"`
	Note     string `json:"note,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

// Event is a controller event (/stat/event).
type Event struct {
	ID        string `json:"_id"`
	Key       string `json:"key"`
	Message   string `json:"msg"`
	Subsystem string `json:"subsystem,omitempty"`
	Time      int64  `json:"time"`
	Datetime  string `json:"datetime,omitempty"`
}

// Alarm is a controller alarm (/list/alarm).
type Alarm struct {
	ID       string `json:"_id"`
	Key      string `json:"key"`
	Message  string `json:"msg"`
	Time     int64  `json:"time"`
	Datetime string `json:"datetime,omitempty"`
	Archived bool   `json:"archived"`
}

// Health is one subsystem entry of /stat/health.
type Health struct {
	Subsystem string `json:"subsystem"`
	Status    string `json:"status"`
	Users     int    `json:"num_user,omitempty"`
	Guests    int    `json:"num_guest,omitempty"`
	Adopted   int    `json:"num_adopted,omitempty"`
	WANIP     string `json:"wan_ip,omitempty"`
}

// RogueAP is a neighbouring access point (/stat/rogueap).
type RogueAP struct {
	ESSID     string `json:"essid,omitempty"`
	BSSID     string `json:"bssid"`
	Channel   int    `json:"channel,omitempty"`
	Frequency int    `json:"freq,omitempty"`
	RSSI      *int   `json:"rssi,omitempty"`
	Security  string `json:"security,omitempty"`
	APMAC     string `json:"ap_mac,omitempty"`
	FirstSeen int64  `json:"first_seen,omitempty"`
	LastSeen  int64  `json:"last_seen,omitempty"`
}

// SpeedTest is one archived speed test (/stat/report/archive.speedtest).
type SpeedTest struct {
	Time     int64   `json:"time"`
	Download float64 `json:"xput_download"`
	Upload   float64 `json:"xput_upload"`
	Latency  float64 `json:"latency"`
	Ping     float64 `json:"ping,omitempty"`
	Jitter   float64 `json:"jitter,omitempty"`
}

// IPSEvent is an intrusion prevention event (/stat/ips/event).
type IPSEvent struct {
	Time          int64  `json:"time"`
	SourceIP      string `json:"src_ip"`
	DestinationIP string `json:"dst_ip"`
	Protocol      string `json:"proto,omitempty"`
	AppProtocol   string `json:"app_proto,omitempty"`
	Signature     string `json:"signature,omitempty"`
	Category      string `json:"category,omitempty"`
	Action        string `json:"action,omitempty"`
	Severity      any    `json:"severity,omitempty"`
	Message       string `json:"msg,omitempty"`
}
