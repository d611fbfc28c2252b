// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classifier decides how much context a query actually needs.
//
// The classifier maps (query, subject, level) to an intent plus two
// needs-flags using a lightweight LLM call with a short hard timeout.
// Classifier output is untrusted: it is parsed strictly, and every failure
// path (timeout, backend error, malformed output, unknown intent) resolves
// to the safe default classification rather than an error. A broken
// classifier degrades answer quality, never availability.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shaswata28/StudyMate-sub001/services/llm"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("studymate.orchestrator.classifier")

// classificationPrompt is the fixed instruction sent to the classification
// backend. Kept short to hold typical latency under 100ms on small models.
const classificationPrompt = `You are a query router for an AI study tutor.

Classify the student's message into exactly one intent:
- "academic": a subject-matter question that benefits from course materials
- "chat": casual conversation, greetings, small talk
- "debug": the student wants a mistake in their own work found or fixed
- "followup": continues the previous exchange and depends on it
- "safety": harmful, cheating-on-exam, or otherwise disallowed requests

Also decide:
- "needs_rag": should course materials be retrieved for this message?
- "needs_history": is prior conversation needed to answer it?

Student level: %s
Subject: %s
Message: %q

Respond with ONLY valid JSON (no markdown, no preamble):
{"intent":"...","needs_rag":bool,"needs_history":bool,"confidence":0.0-1.0}`

// =============================================================================
// Interface
// =============================================================================

// Classifier maps a query to a routing decision.
//
// Implementations must never return an error for backend failures; they
// resolve to datatypes.SafeDefaultClassification() instead.
type Classifier interface {
	Classify(ctx context.Context, query, subject, level string) datatypes.Classification
}

// =============================================================================
// Config
// =============================================================================

// Config controls the LLM-backed classifier.
type Config struct {
	// Timeout is the hard cap on one classification call. The pipeline
	// continues with the safe default when it elapses.
	Timeout time.Duration

	// MaxTokens bounds the classification response length.
	MaxTokens int

	// Temperature for classification calls. Kept near zero so the same
	// query routes the same way.
	Temperature float32
}

// DefaultConfig returns the production classifier configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:     2500 * time.Millisecond,
		MaxTokens:   96,
		Temperature: 0.0,
	}
}

// =============================================================================
// LLM-backed Implementation
// =============================================================================

// Compile-time interface compliance check.
var _ Classifier = (*LLMClassifier)(nil)

// LLMClassifier implements Classifier using an LLM backend.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent calls for the same query are
// coalesced into a single backend call via singleflight.
type LLMClassifier struct {
	client   llm.LLMClient
	config   Config
	inflight singleflight.Group
}

// NewLLMClassifier creates a classifier using the provided LLM client.
func NewLLMClassifier(client llm.LLMClient, config Config) (*LLMClassifier, error) {
	if client == nil {
		return nil, fmt.Errorf("client must not be nil")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	return &LLMClassifier{client: client, config: config}, nil
}

// Classify analyzes a query and returns a routing decision.
//
// # Description
//
// Builds the fixed instruction prompt, calls the backend under the
// configured timeout, and parses the output strictly. Any failure returns
// the safe default and logs a warning; no partial or heuristic field
// extraction is attempted.
func (c *LLMClassifier) Classify(ctx context.Context, query, subject, level string) datatypes.Classification {
	ctx, span := tracer.Start(ctx, "LLMClassifier.Classify")
	defer span.End()

	key := subject + "\x00" + level + "\x00" + query
	result, err, shared := c.inflight.Do(key, func() (any, error) {
		return c.classifyOnce(ctx, query, subject, level)
	})
	span.SetAttributes(attribute.Bool("classifier.coalesced", shared))

	if err != nil {
		slog.Warn("Classification failed, using safe default",
			"error", err,
		)
		span.SetAttributes(attribute.Bool("classifier.fallback", true))
		observability.ClassifierFallbackTotal.Inc()
		return datatypes.SafeDefaultClassification()
	}

	classification := result.(datatypes.Classification)
	span.SetAttributes(
		attribute.String("classifier.intent", string(classification.Intent)),
		attribute.Bool("classifier.needs_rag", classification.NeedsRAG),
		attribute.Bool("classifier.needs_history", classification.NeedsHistory),
		attribute.Float64("classifier.confidence", classification.Confidence),
	)
	return classification
}

// classifyOnce performs a single backend call and strict parse.
func (c *LLMClassifier) classifyOnce(ctx context.Context, query, subject, level string) (datatypes.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(classificationPrompt, orUnknown(level), orUnknown(subject), query)
	temperature := c.config.Temperature
	maxTokens := c.config.MaxTokens
	params := llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	raw, err := c.client.Generate(ctx, prompt, params)
	if err != nil {
		return datatypes.Classification{}, fmt.Errorf("classification backend: %w", err)
	}

	return parseClassification(raw)
}

// parseClassification strictly parses the backend's output.
//
// The output is untrusted. A markdown code fence is tolerated because small
// models add one despite instructions, but inside it the JSON must decode
// cleanly into the closed shape and name a known intent.
func parseClassification(raw string) (datatypes.Classification, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))

	var parsed struct {
		Intent       string  `json:"intent"`
		NeedsRAG     bool    `json:"needs_rag"`
		NeedsHistory bool    `json:"needs_history"`
		Confidence   float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return datatypes.Classification{}, fmt.Errorf("malformed classifier output: %w", err)
	}

	intent, err := datatypes.ParseIntent(parsed.Intent)
	if err != nil {
		return datatypes.Classification{}, err
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return datatypes.Classification{
		Intent:       intent,
		NeedsRAG:     parsed.NeedsRAG,
		NeedsHistory: parsed.NeedsHistory,
		Confidence:   confidence,
	}, nil
}

// stripCodeFence removes a surrounding ```json ... ``` fence if present.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
