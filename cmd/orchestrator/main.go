// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the StudyMate orchestrator HTTP server.
//
// This is the main entry point for the containerized orchestrator
// service. It reads configuration from environment variables and starts
// the server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 8080)
//   - LLM_BACKEND_TYPE: generation provider - openai, ollama (default: ollama)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional)
//   - STORE_BACKEND: conversation store - memory, weaviate (default: memory)
//   - ALLOWED_ORIGINS: comma-separated CORS allow-list (optional)
//   - RATE_LIMIT: requests per user per window (default: 15)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector
//     (default: studymate-otel-collector:4317)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Shaswata28/StudyMate-sub001/pkg/logging"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   getEnvString("LOG_LEVEL", "info"),
		Service: "orchestrator",
	})
	slog.SetDefault(logger)

	cfg := orchestrator.Config{
		Port:           getEnvInt("ORCHESTRATOR_PORT", 8080),
		LLMBackend:     getEnvString("LLM_BACKEND_TYPE", "ollama"),
		WeaviateURL:    os.Getenv("WEAVIATE_SERVICE_URL"),
		StoreBackend:   getEnvString("STORE_BACKEND", "memory"),
		AllowedOrigins: splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		RateLimit:      int64(getEnvInt("RATE_LIMIT", 15)),
		OTelEndpoint:   getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "studymate-otel-collector:4317"),
	}

	slog.Info("Starting orchestrator",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"weaviate_url", cfg.WeaviateURL,
		"store_backend", cfg.StoreBackend,
	)

	// Hosted builds pass custom ServiceOptions here.
	svc, err := orchestrator.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// splitCSV splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
