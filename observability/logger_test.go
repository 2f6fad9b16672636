package observability_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/unifi-mcp/observability"
)

func TestNoopLogger(t *testing.T) {
	t.Parallel()

	logger := observability.NoopLogger()
	scoped := logger.With(observability.Field{Key: "component", Value: "dispatcher"})
	require.NotNil(t, scoped)

	assert.NotPanics(t, func() {
		scoped.Debug("normalized parameters")
		scoped.Info("action performed", observability.Field{Key: "action", Value: "get_devices"})
		scoped.Warn("logout failed")
		scoped.Error("login failed", observability.Field{Key: "error", Value: nil})
	})
}

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level slog.Level
		want  []string
	}{
		{name: "debug", level: slog.LevelDebug, want: []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{name: "warn", level: slog.LevelWarn, want: []string{"WARN", "ERROR"}},
		{name: "error", level: slog.LevelError, want: []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := observability.NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: tt.level})))

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e", observability.Field{Key: "kind", Value: "authentication"})

			var levels []string
			for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
				var record map[string]any
				require.NoError(t, json.Unmarshal(line, &record))
				levels = append(levels, record["level"].(string))
			}

			assert.Equal(t, tt.want, levels)
		})
	}
}

func TestSlogLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger := observability.NewSlogLogger(base)

	logger.Debug("hidden", observability.Field{Key: "k", Value: "v"})
	assert.Empty(t, buf.String(), "debug must be filtered at info level")

	logger.With(observability.Field{Key: "component", Value: "session"}).
		Info("login succeeded", observability.Field{Key: "variant", Value: "udm"})

	out := buf.String()
	assert.Contains(t, out, "login succeeded")
	assert.Contains(t, out, "component=session")
	assert.Contains(t, out, "variant=udm")
	assert.Same(t, base, logger.Slog())
}

func TestNewSlogLoggerNil(t *testing.T) {
	t.Parallel()

	logger := observability.NewSlogLogger(nil)
	require.NotNil(t, logger.Slog())
}

func BenchmarkNoopLogger(b *testing.B) {
	logger := observability.NoopLogger()
	fields := []observability.Field{
		{Key: "action", Value: "get_devices"},
		{Key: "site", Value: "default"},
	}

	for b.Loop() {
		logger.Info("action performed", fields...)
	}
}
