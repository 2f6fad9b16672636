// Package config loads the controller credentials and server settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file, then process environment variables. The resulting Config is
// validated once and treated as immutable afterwards.
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultRequestTimeout bounds a single controller call.
	DefaultRequestTimeout = 20 * time.Second
	// DefaultLoginTimeout bounds a single login exchange.
	DefaultLoginTimeout = 15 * time.Second
	// DefaultRateLimit is the client-side request budget per minute.
	DefaultRateLimit = 600

	DefaultHost      = "0.0.0.0"
	DefaultPort      = 8001
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"

	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Environment variable names.
const (
	EnvControllerURL  = "UNIFI_CONTROLLER_URL"
	EnvUsername       = "UNIFI_USERNAME"
	EnvPassword       = "UNIFI_PASSWORD"
	EnvVerifySSL      = "UNIFI_VERIFY_SSL"
	EnvIsUDMPro       = "UNIFI_IS_UDM_PRO"
	EnvTimeout        = "UNIFI_TIMEOUT"
	EnvRequestTimeout = "UNIFI_REQUEST_TIMEOUT"
	EnvLoginTimeout   = "UNIFI_LOGIN_TIMEOUT"
	EnvRateLimit      = "UNIFI_RATE_LIMIT"
	EnvTransport      = "UNIFI_LOCAL_MCP_TRANSPORT"
	EnvHost           = "UNIFI_LOCAL_MCP_HOST"
	EnvPort           = "UNIFI_LOCAL_MCP_PORT"
	EnvLogLevel       = "UNIFI_LOCAL_MCP_LOG_LEVEL"
	EnvLogFile        = "UNIFI_LOCAL_MCP_LOG_FILE"
	EnvLogFormat      = "UNIFI_LOCAL_MCP_LOG_FORMAT"
)

// Controller is the credential store for one controller connection.
type Controller struct {
	// BaseURL is the controller root, e.g. "https://192.168.1.1".
	BaseURL string `yaml:"url"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// UDM selects the UniFi OS login flow and /proxy/network API prefix.
	UDM bool `yaml:"udm"`

	// VerifyTLS enables certificate verification. Controllers usually ship
	// self-signed certificates, so it defaults to false.
	VerifyTLS bool `yaml:"verify_tls"`
}

// String renders the profile without the password.
func (c Controller) String() string {
	variant := "legacy"
	if c.UDM {
		variant = "udm"
	}

	return c.Username + "@" + c.BaseURL + " (" + variant + ")"
}

// HTTP holds controller transport settings.
type HTTP struct {
	Timeout            time.Duration `yaml:"timeout"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	LoginTimeout       time.Duration `yaml:"login_timeout"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
}

// Server holds MCP hosting settings.
type Server struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
}

// Config is the complete process configuration.
type Config struct {
	Controller Controller `yaml:"controller"`
	HTTP       HTTP       `yaml:"http"`
	Server     Server     `yaml:"server"`
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an optional YAML file. Empty skips it.
	File string

	// EnvFile is an optional dotenv file. Missing files are ignored.
	EnvFile string

	// Lookup overrides os.LookupEnv, mainly for tests.
	Lookup func(string) (string, bool)
}

// Default returns a Config populated with defaults only.
func Default() Config {
	return Config{
		Controller: Controller{
			UDM: true,
		},
		HTTP: HTTP{
			Timeout:            DefaultTimeout,
			RequestTimeout:     DefaultRequestTimeout,
			LoginTimeout:       DefaultLoginTimeout,
			RateLimitPerMinute: DefaultRateLimit,
		},
		Server: Server{
			Transport: TransportStdio,
			Host:      DefaultHost,
			Port:      DefaultPort,
			LogLevel:  DefaultLogLevel,
			LogFormat: DefaultLogFormat,
		},
	}
}

// Load builds and validates a Config.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := cfg.mergeFile(opts.File); err != nil {
			return nil, err
		}
	}

	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			// Overload: values in the project .env win over the inherited environment.
			if err := godotenv.Overload(opts.EnvFile); err != nil {
				return nil, errors.Wrapf(err, "failed to load env file %s", opts.EnvFile)
			}
		}
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if err := cfg.mergeEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}

	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str(EnvControllerURL, &c.Controller.BaseURL)
	str(EnvUsername, &c.Controller.Username)
	str(EnvPassword, &c.Controller.Password)
	str(EnvTransport, &c.Server.Transport)
	str(EnvHost, &c.Server.Host)
	str(EnvLogLevel, &c.Server.LogLevel)
	str(EnvLogFile, &c.Server.LogFile)
	str(EnvLogFormat, &c.Server.LogFormat)

	if v, ok := lookup(EnvVerifySSL); ok && v != "" {
		c.Controller.VerifyTLS = parseBool(v)
	}
	if v, ok := lookup(EnvIsUDMPro); ok && v != "" {
		c.Controller.UDM = parseBool(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvTimeout, &c.HTTP.Timeout},
		{EnvRequestTimeout, &c.HTTP.RequestTimeout},
		{EnvLoginTimeout, &c.HTTP.LoginTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}

		parsed, err := parseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", d.key)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvRateLimit, &c.HTTP.RateLimitPerMinute},
		{EnvPort, &c.Server.Port},
	}
	for _, i := range ints {
		v, ok := lookup(i.key)
		if !ok || v == "" {
			continue
		}

		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "invalid %s", i.key)
		}
		*i.dst = parsed
	}

	return nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Controller.BaseURL == "" {
		return errors.Newf("%s is required", EnvControllerURL)
	}

	u, err := url.Parse(c.Controller.BaseURL)
	if err != nil {
		return errors.Wrapf(err, "invalid controller URL %q", c.Controller.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf("controller URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.Newf("controller URL %q has no host", c.Controller.BaseURL)
	}
	c.Controller.BaseURL = strings.TrimRight(c.Controller.BaseURL, "/")

	if c.Controller.Username == "" {
		return errors.Newf("%s is required", EnvUsername)
	}
	if c.Controller.Password == "" {
		return errors.Newf("%s is required", EnvPassword)
	}

	if c.HTTP.Timeout <= 0 || c.HTTP.RequestTimeout <= 0 || c.HTTP.LoginTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.HTTP.RateLimitPerMinute <= 0 {
		return errors.Newf("%s must be positive", EnvRateLimit)
	}

	switch c.Server.Transport {
	case TransportStdio, TransportSSE:
	default:
		return errors.Newf("unknown transport %q (supported: %s, %s)", c.Server.Transport, TransportStdio, TransportSSE)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("invalid port %d", c.Server.Port)
	}

	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if seconds, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrap(err, "parse duration")
	}

	return d, nil
}
