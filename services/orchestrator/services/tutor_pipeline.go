// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services provides business logic services for the orchestrator.
//
// This package contains service structs that encapsulate business logic,
// separating it from HTTP handlers. Services are responsible for:
//   - Orchestrating calls to backends (classifier, Weaviate, LLM)
//   - Applying business rules and validation
//   - Error handling and graceful degradation
//
// Services are designed to be:
//   - Testable: dependencies are injected via constructors
//   - Traceable: all methods accept context for distributed tracing
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Shaswata28/StudyMate-sub001/pkg/extensions"
	"github.com/Shaswata28/StudyMate-sub001/services/llm"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/classifier"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/contextbuilder"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/conversation"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/observability"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/retrieval"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/safety"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/sanitize"
)

// pipelineTracer is the OpenTelemetry tracer for TutorPipeline operations.
var pipelineTracer = otel.Tracer("studymate.orchestrator.services.pipeline")

// =============================================================================
// Error Types
// =============================================================================

// GenerationUnavailableError wraps backend failures during generation.
//
// # Description
//
// Raised when the generation backend times out or errors. Handlers map
// it to HTTP 503 with a user-friendly message; the underlying cause is
// logged, never shown to users.
type GenerationUnavailableError struct {
	Cause error
}

// Error implements the error interface.
func (e *GenerationUnavailableError) Error() string {
	return fmt.Sprintf("generation backend unavailable: %v", e.Cause)
}

// Unwrap exposes the backend cause for errors.Is/As.
func (e *GenerationUnavailableError) Unwrap() error {
	return e.Cause
}

// IsGenerationUnavailable checks if an error is a GenerationUnavailableError.
// Handlers use this to pick the 503 path.
func IsGenerationUnavailable(err error) bool {
	_, ok := err.(*GenerationUnavailableError)
	return ok
}

// =============================================================================
// TutorPipeline
// =============================================================================

// PipelineConfig bounds the generation step.
type PipelineConfig struct {
	// GenerationTimeout caps one backend generation call.
	GenerationTimeout time.Duration

	// MaxOutputTokens caps the generated response length.
	MaxOutputTokens int

	// MaxExcerpts caps retrieval results per turn.
	MaxExcerpts int
}

// DefaultPipelineConfig returns the production pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		GenerationTimeout: 30 * time.Second,
		MaxOutputTokens:   1024,
		MaxExcerpts:       3,
	}
}

// TutorPipeline orchestrates one tutoring turn end to end. It wires
// together:
//   - Classifier: routes the message (intent, RAG, history)
//   - Safety gate: refuses disallowed requests before any other work
//   - Retriever: course material excerpts from Weaviate
//   - Extensions providers: student profile and preferences
//   - Context assembler: bounded prompt construction
//   - LLM client: response generation
//   - Sanitizer: strips model framing before the response leaves
//   - Conversation store: append-only session history
//
// The pipeline is stateless between turns; all per-turn state flows
// through Respond. Safe for concurrent use.
type TutorPipeline struct {
	classifier classifier.Classifier
	retriever  retrieval.Retriever
	llmClient  llm.LLMClient
	store      conversation.Store
	assembler  *contextbuilder.Assembler
	opts       extensions.ServiceOptions
	config     PipelineConfig
	logger     *slog.Logger
}

// NewTutorPipeline creates a pipeline with the provided dependencies.
//
// # Inputs
//
//   - cls: query classifier. Must not be nil.
//   - retriever: course material retriever. Must not be nil (use a
//     WeaviateRetriever with a nil client to disable retrieval).
//   - llmClient: generation backend. Must not be nil.
//   - store: conversation store. Must not be nil.
//   - assembler: context assembler. Must not be nil.
//   - opts: extension providers; zero value fields get no-op defaults.
//   - config: zero values are replaced with defaults.
func NewTutorPipeline(
	cls classifier.Classifier,
	retriever retrieval.Retriever,
	llmClient llm.LLMClient,
	store conversation.Store,
	assembler *contextbuilder.Assembler,
	opts extensions.ServiceOptions,
	config PipelineConfig,
	logger *slog.Logger,
) *TutorPipeline {
	defaults := DefaultPipelineConfig()
	if config.GenerationTimeout <= 0 {
		config.GenerationTimeout = defaults.GenerationTimeout
	}
	if config.MaxOutputTokens <= 0 {
		config.MaxOutputTokens = defaults.MaxOutputTokens
	}
	if config.MaxExcerpts <= 0 {
		config.MaxExcerpts = defaults.MaxExcerpts
	}
	if opts.AuthProvider == nil {
		opts.AuthProvider = &extensions.NopAuthProvider{}
	}
	if opts.ProfileProvider == nil {
		opts.ProfileProvider = &extensions.NopProfileProvider{}
	}
	if opts.PreferenceProvider == nil {
		opts.PreferenceProvider = &extensions.NopPreferenceProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TutorPipeline{
		classifier: cls,
		retriever:  retriever,
		llmClient:  llmClient,
		store:      store,
		assembler:  assembler,
		opts:       opts,
		config:     config,
		logger:     logger,
	}
}

// =============================================================================
// Core Processing
// =============================================================================

// Respond processes one tutoring turn.
//
// # Description
//
// Flow: validate the request, classify it, run the safety gate (refused
// turns short-circuit with the fixed refusal and touch no other
// backend), retrieve materials when the classification asks for them,
// look up profile and preferences, assemble the bounded context,
// generate, sanitize, and record both turns.
//
// Classifier and retrieval failures are absorbed: the turn still gets a
// response, built from the safe default classification or without
// excerpts. Only three error kinds cross this boundary:
//
//   - *datatypes.SchemaError: the request failed validation
//   - *GenerationUnavailableError: the backend failed or timed out
//   - anything else: unexpected internal failure
//
// # Inputs
//
//   - ctx: request-scoped context; carries the trace.
//   - userID: resolved caller identity, used for profile/preference
//     lookup. May be empty.
//   - sessionID: conversation session key. Must not be empty.
//   - req: the chat request. Must not be nil.
func (p *TutorPipeline) Respond(
	ctx context.Context,
	userID, sessionID string,
	req *datatypes.TutorChatRequest,
) (*datatypes.TutorChatResponse, error) {
	ctx, span := pipelineTracer.Start(ctx, "TutorPipeline.Respond")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	profile, preferences := p.lookupStudent(ctx, userID)

	classification := p.classify(ctx, req.Message, profile)
	span.SetAttributes(attribute.String("tutor.intent", string(classification.Intent)))

	if verdict := safety.Check(classification); verdict.Blocked {
		observability.SafetyRefusalsTotal.Inc()
		observability.RequestsTotal.WithLabelValues(string(classification.Intent), "refused").Inc()
		p.logger.Info("Turn refused by safety gate", "session_id", sessionID)
		p.record(ctx, sessionID, req.Message, verdict.Message)
		return datatypes.NewTutorChatResponse(verdict.Message, sessionID), nil
	}

	var excerpts []datatypes.MaterialExcerpt
	if classification.NeedsRAG {
		excerpts = p.retrieve(ctx, profile, req.Message)
	}

	history := p.loadHistory(ctx, sessionID, req, classification)

	assembled, err := p.assembler.Assemble(contextbuilder.Input{
		Profile:        profile,
		Preferences:    preferences,
		Classification: classification,
		Excerpts:       excerpts,
		History:        history,
		Message:        req.Message,
	})
	if err != nil {
		// Validation already rejected empty messages; reaching this is
		// a programming error.
		span.SetStatus(codes.Error, "assembly failed")
		return nil, fmt.Errorf("context assembly: %w", err)
	}
	span.SetAttributes(attribute.Int("tutor.context_chars", assembled.CharSize))

	raw, err := p.generate(ctx, assembled)
	if err != nil {
		span.SetStatus(codes.Error, "generation failed")
		observability.RequestsTotal.WithLabelValues(string(classification.Intent), "upstream_error").Inc()
		return nil, err
	}

	clean := sanitize.Clean(raw)
	if clean != raw {
		observability.SanitizerStrippedTotal.Inc()
	}

	p.record(ctx, sessionID, req.Message, clean)
	observability.RequestsTotal.WithLabelValues(string(classification.Intent), "ok").Inc()

	return datatypes.NewTutorChatResponse(clean, sessionID), nil
}

// =============================================================================
// Pipeline Stages
// =============================================================================

// lookupStudent fetches profile and preferences. Both lookups are best
// effort; failures log a warning and the turn proceeds without them.
func (p *TutorPipeline) lookupStudent(ctx context.Context, userID string) (*datatypes.Profile, *datatypes.Preferences) {
	if userID == "" {
		return nil, nil
	}

	profile, err := p.opts.ProfileProvider.Profile(ctx, userID)
	if err != nil {
		p.logger.Warn("Profile lookup failed", "user_id", userID, "error", err)
		profile = nil
	}

	preferences, err := p.opts.PreferenceProvider.Preferences(ctx, userID)
	if err != nil {
		p.logger.Warn("Preference lookup failed", "user_id", userID, "error", err)
		preferences = nil
	}

	return profile, preferences
}

// classify runs the classifier stage with timing. The classifier absorbs
// its own failures and always returns a usable classification.
func (p *TutorPipeline) classify(ctx context.Context, message string, profile *datatypes.Profile) datatypes.Classification {
	defer observability.ObserveStage("classify", time.Now())

	subject, level := "", ""
	if profile != nil {
		subject, level = profile.Subject, profile.Level
	}
	return p.classifier.Classify(ctx, message, subject, level)
}

// retrieve runs the retrieval stage with timing. Retrieval never fails
// the turn; an empty result just means no materials block.
func (p *TutorPipeline) retrieve(ctx context.Context, profile *datatypes.Profile, message string) []datatypes.MaterialExcerpt {
	defer observability.ObserveStage("retrieve", time.Now())

	scope := ""
	if profile != nil {
		scope = profile.Subject
	}
	excerpts := p.retriever.Retrieve(ctx, scope, message, p.config.MaxExcerpts)
	if len(excerpts) == 0 {
		observability.RetrievalEmptyTotal.Inc()
	}
	return excerpts
}

// loadHistory picks the history source: the client-supplied window when
// present, else the newest stored turns. A store failure degrades to no
// history.
func (p *TutorPipeline) loadHistory(
	ctx context.Context,
	sessionID string,
	req *datatypes.TutorChatRequest,
	classification datatypes.Classification,
) []datatypes.ConversationTurn {
	if !classification.NeedsHistory {
		return nil
	}

	if len(req.History) > 0 {
		turns := make([]datatypes.ConversationTurn, 0, len(req.History))
		for i, item := range req.History {
			role := datatypes.RoleUser
			if item.Role == "model" {
				role = datatypes.RoleAssistant
			}
			turns = append(turns, datatypes.ConversationTurn{
				SessionID: sessionID,
				Role:      role,
				Text:      item.Content,
				Seq:       int64(i + 1),
			})
		}
		return turns
	}

	turns, err := p.store.Tail(ctx, sessionID, datatypes.MaxHistoryItems)
	if err != nil {
		p.logger.Warn("History load failed, continuing without history",
			"session_id", sessionID,
			"error", err,
		)
		return nil
	}
	return turns
}

// generate calls the backend under the configured timeout.
func (p *TutorPipeline) generate(ctx context.Context, assembled *datatypes.AssembledContext) (string, error) {
	defer observability.ObserveStage("generate", time.Now())

	genCtx, cancel := context.WithTimeout(ctx, p.config.GenerationTimeout)
	defer cancel()

	maxTokens := p.config.MaxOutputTokens
	params := llm.GenerationParams{MaxTokens: &maxTokens}

	raw, err := p.llmClient.Chat(genCtx, assembled.Segments, params)
	if err != nil {
		p.logger.Error("Generation backend failed", "error", err)
		return "", &GenerationUnavailableError{Cause: err}
	}
	return raw, nil
}

// record appends both turns of the exchange. Persist failures are
// post-response bookkeeping and never fail the turn.
func (p *TutorPipeline) record(ctx context.Context, sessionID, userText, modelText string) {
	defer observability.ObserveStage("store", time.Now())

	if err := p.store.Append(ctx, sessionID, datatypes.RoleUser, userText); err != nil {
		p.logger.Warn("Failed to persist user turn", "session_id", sessionID, "error", err)
		return
	}
	if err := p.store.Append(ctx, sessionID, datatypes.RoleAssistant, modelText); err != nil {
		p.logger.Warn("Failed to persist model turn", "session_id", sessionID, "error", err)
	}
}
