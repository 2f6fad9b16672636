package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lexfrei/unifi-mcp/internal/config"
)

// Rotation settings for the optional log file.
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// newLogger builds the process logger. Records go to w, which is stderr in
// production since stdout carries the stdio transport, and additionally to a
// rotating file when one is configured.
func newLogger(cfg config.Server, w io.Writer) (*slog.Logger, io.Closer, error) {
	name := strings.ToUpper(cfg.LogLevel)
	switch name {
	case "WARNING":
		name = "WARN"
	case "CRITICAL":
		name = "ERROR"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid log level %q", cfg.LogLevel)
	}

	var closer io.Closer = nopCloser{}

	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(w, file)
		closer = file
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, nil, errors.Newf("invalid log format %q, expected text or json", cfg.LogFormat)
	}

	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
