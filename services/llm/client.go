// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for the generation and classification
// backends. Backends are opaque network services; every client implements
// the same LLMClient interface and is selected by configuration.
package llm

import (
	"context"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

// GenerationParams are the per-call knobs accepted by every backend.
// Nil pointers mean "use the backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	// Generate produces a completion for a single prompt string. Used by
	// the intent classifier, which needs no chat structure.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat produces a completion for an ordered list of role-tagged
	// messages. Used by the tutoring pipeline with assembled contexts.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
}
