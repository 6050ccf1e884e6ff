package main

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/velmie/syncpipe/cmd/internal/config"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("syncpipe drain failed", "id", "42")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "syncpipe drain failed", entry["msg"])
	require.Equal(t, "42", entry["id"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "debug", Format: "text"})

	logger.Debug("syncpipe drain requested", "reason", "recorded")
	require.Contains(t, buf.String(), "reason=recorded")
}
