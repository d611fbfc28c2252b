// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel covers the level names and the info fallback.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"  info  ", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.name), "level %q", tt.name)
	}
}

// TestNewEmitsJSONWithServiceTag verifies the record shape.
func TestNewEmitsJSONWithServiceTag(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Service: "orchestrator", Output: &buf})

	logger.Info("request handled", "status", 200)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "request handled", record["msg"])
	assert.Equal(t, "orchestrator", record["service"])
	assert.Equal(t, float64(200), record["status"])
}

// TestNewRespectsLevel drops records below the configured level.
func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "error", Output: &buf})

	logger.Info("quiet")
	assert.Zero(t, buf.Len())

	logger.Error("loud")
	assert.NotZero(t, buf.Len())
}
