package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/unifi-mcp/internal/config"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func minimalEnv() map[string]string {
	return map[string]string{
		config.EnvControllerURL: "https://192.168.1.1/",
		config.EnvUsername:      "admin",
		config.EnvPassword:      "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(config.Options{Lookup: lookupFrom(minimalEnv())})
	require.NoError(t, err)

	assert.Equal(t, "https://192.168.1.1", cfg.Controller.BaseURL, "trailing slash trimmed")
	assert.True(t, cfg.Controller.UDM)
	assert.False(t, cfg.Controller.VerifyTLS)
	assert.Equal(t, config.DefaultTimeout, cfg.HTTP.Timeout)
	assert.Equal(t, config.DefaultLoginTimeout, cfg.HTTP.LoginTimeout)
	assert.Equal(t, config.DefaultRateLimit, cfg.HTTP.RateLimitPerMinute)
	assert.Equal(t, config.TransportStdio, cfg.Server.Transport)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultHost, cfg.Server.Host)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Parallel()

	env := minimalEnv()
	env[config.EnvIsUDMPro] = "false"
	env[config.EnvVerifySSL] = "TRUE"
	env[config.EnvLoginTimeout] = "5"
	env[config.EnvRequestTimeout] = "1500ms"
	env[config.EnvRateLimit] = "60"
	env[config.EnvTransport] = "sse"
	env[config.EnvPort] = "9000"

	cfg, err := config.Load(config.Options{Lookup: lookupFrom(env)})
	require.NoError(t, err)

	assert.False(t, cfg.Controller.UDM)
	assert.True(t, cfg.Controller.VerifyTLS)
	assert.Equal(t, 5*time.Second, cfg.HTTP.LoginTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 60, cfg.HTTP.RateLimitPerMinute)
	assert.Equal(t, config.TransportSSE, cfg.Server.Transport)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadYAMLFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "unifi.yaml")
	content := `controller:
  url: http://unifi.local:8443
  username: yaml-user
  password: yaml-pass
  udm: false
server:
  log_level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	env := map[string]string{config.EnvUsername: "env-user"}

	cfg, err := config.Load(config.Options{File: path, Lookup: lookupFrom(env)})
	require.NoError(t, err)

	assert.Equal(t, "http://unifi.local:8443", cfg.Controller.BaseURL)
	assert.Equal(t, "env-user", cfg.Controller.Username, "environment wins over file")
	assert.Equal(t, "yaml-pass", cfg.Controller.Password)
	assert.False(t, cfg.Controller.UDM)
	assert.Equal(t, "DEBUG", cfg.Server.LogLevel)
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantErr string
	}{
		{"missing url", func(e map[string]string) { delete(e, config.EnvControllerURL) }, config.EnvControllerURL},
		{"missing username", func(e map[string]string) { delete(e, config.EnvUsername) }, config.EnvUsername},
		{"missing password", func(e map[string]string) { delete(e, config.EnvPassword) }, config.EnvPassword},
		{"bad scheme", func(e map[string]string) { e[config.EnvControllerURL] = "ftp://x" }, "http or https"},
		{"no host", func(e map[string]string) { e[config.EnvControllerURL] = "https://" }, "no host"},
		{"bad transport", func(e map[string]string) { e[config.EnvTransport] = "grpc" }, "unknown transport"},
		{"bad port", func(e map[string]string) { e[config.EnvPort] = "70000" }, "invalid port"},
		{"unparsable port", func(e map[string]string) { e[config.EnvPort] = "abc" }, config.EnvPort},
		{"bad duration", func(e map[string]string) { e[config.EnvTimeout] = "soon" }, config.EnvTimeout},
		{"zero rate", func(e map[string]string) { e[config.EnvRateLimit] = "0" }, config.EnvRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := minimalEnv()
			tt.mutate(env)

			_, err := config.Load(config.Options{Lookup: lookupFrom(env)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestControllerStringRedactsPassword(t *testing.T) {
	t.Parallel()

	c := config.Controller{BaseURL: "https://gw", Username: "admin", Password: "hunter2", UDM: true}

	assert.Equal(t, "admin@https://gw (udm)", c.String())
	assert.NotContains(t, c.String(), "hunter2")
}
