// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the request and response types for the tutor chat
// endpoint. For classification types see classification.go, for retrieval
// types see rag.go, for conversation persistence see conversation.go.
package datatypes

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxMessageChars is the maximum length of a single user message.
	MaxMessageChars = 2000

	// MaxHistoryItems is the maximum number of client-supplied history
	// entries accepted on a request. Longer histories must be truncated
	// client-side; the server enforces its own sliding window anyway.
	MaxHistoryItems = 10
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
var chatValidate = newChatValidator()

func newChatValidator() *validator.Validate {
	v := validator.New()

	// min=1 accepts a message of pure whitespace; notblank rejects it
	// at the schema boundary instead of deep in the pipeline.
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(fmt.Sprintf("failed to register notblank validator: %v", err))
	}

	return v
}

// =============================================================================
// Message
// =============================================================================

// Message is a single role-tagged segment of a model conversation.
//
// # Description
//
// Message is the only shape accepted by the generation backend: an ordered
// list of Messages is the assembled context, and every backend adapter
// converts it to its own wire format. Roles follow the common chat
// convention: "system", "user", "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles used in assembled contexts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// =============================================================================
// Tutor Chat Request / Response
// =============================================================================

// HistoryItem is one client-visible turn of prior conversation.
//
// The wire role vocabulary is "user"/"model" (what the chat UI speaks);
// it is mapped to internal roles by the pipeline.
type HistoryItem struct {
	Role    string `json:"role" validate:"required,oneof=user model"`
	Content string `json:"content" validate:"required"`
}

// Attachment is an opaque reference to an uploaded file. Upload and parsing
// are owned by the materials subsystem; the orchestrator accepts the
// references and ignores their payloads.
type Attachment struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// TutorChatRequest is the request body for POST /v1/tutor/chat.
//
// # Description
//
// Carries the user's message plus optional client-side history and
// attachment references. The message is bounded to MaxMessageChars and the
// history to MaxHistoryItems; both bounds are enforced before any pipeline
// work happens.
//
// # Validation
//
// Uses go-playground/validator:
//   - Message: required, non-blank, 1..2000 characters
//   - History: 0..10 items, each with role "user"|"model" and content
type TutorChatRequest struct {
	Message     string        `json:"message" validate:"required,notblank,max=2000"`
	History     []HistoryItem `json:"history" validate:"omitempty,max=10,dive"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}

// Validate checks the request against its schema rules.
//
// Returns a *SchemaError carrying field-level detail when validation fails,
// so handlers can answer 422 with actionable messages.
func (r *TutorChatRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return newSchemaError(verrs)
		}
		return err
	}
	return nil
}

// TutorChatResponse is the success body for POST /v1/tutor/chat.
type TutorChatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id,omitempty"`
}

// NewTutorChatResponse builds a response stamped with the current UTC time
// in RFC 3339 format.
func NewTutorChatResponse(text, sessionID string) *TutorChatResponse {
	return &TutorChatResponse{
		Response:  text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		SessionID: sessionID,
	}
}

// =============================================================================
// Error Body
// =============================================================================

// Machine-facing error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest            = "BAD_REQUEST"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	CodeGenerationUnavailable = "GENERATION_UNAVAILABLE"
	CodeInternal              = "INTERNAL_ERROR"
)

// ErrorResponse is the error body for every non-2xx answer.
//
// Error carries the user-facing text; Code is the stable machine-facing
// identifier. Fields and RetryAfterSeconds are populated only where they
// apply (422 and 429 respectively).
type ErrorResponse struct {
	Error             string       `json:"error"`
	Code              string       `json:"code"`
	Fields            []FieldError `json:"fields,omitempty"`
	RetryAfterSeconds int64        `json:"retry_after_seconds,omitempty"`
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// =============================================================================
// Schema Error
// =============================================================================

// SchemaError reports request-schema validation failures with per-field
// detail. Handlers map it to HTTP 422.
type SchemaError struct {
	Fields []FieldError
}

// newSchemaError converts validator output into a SchemaError.
func newSchemaError(verrs validator.ValidationErrors) *SchemaError {
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:  fe.Field(),
			Reason: reasonForTag(fe),
		})
	}
	return &SchemaError{Fields: fields}
}

// reasonForTag renders a human-readable reason for a failed validator tag.
func reasonForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s items or characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Error implements the error interface for SchemaError.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed: %d invalid fields", len(e.Fields))
}

// IsSchemaError checks if an error is a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
