// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for StudyMate services.
//
// Built on the standard library slog package. Every service logs JSON
// to stdout so the container runtime can ship logs without sidecar
// configuration; each record carries a "service" attribute for
// filtering in the aggregator.
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{
//	    Level:   "info",
//	    Service: "orchestrator",
//	})
//	slog.SetDefault(logger)
//	logger.Info("starting server", "port", 8080)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values fall
	// back to info.
	Level string

	// Service tags every record. Empty omits the attribute.
	Service string

	// Output defaults to os.Stdout.
	Output io.Writer
}

// ParseLevel maps a level name to its slog value. Matching is
// case-insensitive; unknown names yield LevelInfo.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a JSON logger from the given configuration.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger
}
