// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the Gin HTTP handlers for the orchestrator.
//
// Handlers stay thin: they parse and bind the request, resolve identity
// and session, delegate to the pipeline, and map its errors onto HTTP
// status codes. Business logic lives in the services package.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/middleware"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/observability"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/services"
)

var handlerTracer = otel.Tracer("studymate.orchestrator.handlers")

// sessionHeader carries the conversation session across requests. The
// server generates one when the client does not supply it, and always
// echoes the effective value back.
const sessionHeader = "X-Session-ID"

// HandleTutorChat processes one tutoring turn.
//
// # Description
//
// Binds the request body, resolves session and identity, delegates to
// the pipeline, and maps outcomes to status codes:
//
//   - 200: response generated (including safety refusals)
//   - 400: body is not valid JSON
//   - 422: body parsed but failed validation (field detail included)
//   - 503: generation backend unavailable
//   - 500: anything else; a generic message is returned, the real error
//     is logged
//
// Rate limiting (429) happens in middleware before this handler runs.
func HandleTutorChat(pipeline *services.TutorPipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleTutorChat")
		defer span.End()

		var req datatypes.TutorChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "malformed request body")
			observability.RequestsTotal.WithLabelValues("unknown", "client_error").Inc()
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: "request body is not valid JSON",
				Code:  datatypes.CodeBadRequest,
			})
			return
		}

		sessionID := c.GetHeader(sessionHeader)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		c.Header(sessionHeader, sessionID)

		userID := middleware.Identity(c)

		resp, err := pipeline.Respond(ctx, userID, sessionID, &req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pipeline failed")
			writeTutorError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// writeTutorError maps pipeline errors onto HTTP responses.
func writeTutorError(c *gin.Context, err error) {
	var schemaErr *datatypes.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		observability.RequestsTotal.WithLabelValues("unknown", "client_error").Inc()
		c.JSON(http.StatusUnprocessableEntity, datatypes.ErrorResponse{
			Error:  "request failed validation",
			Code:   datatypes.CodeValidationFailed,
			Fields: schemaErr.Fields,
		})

	case services.IsGenerationUnavailable(err):
		slog.Error("Generation unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
			Error: "the tutor is temporarily unavailable, please try again shortly",
			Code:  datatypes.CodeGenerationUnavailable,
		})

	default:
		slog.Error("Unexpected pipeline failure", "error", err)
		observability.RequestsTotal.WithLabelValues("unknown", "internal_error").Inc()
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "internal error",
			Code:  datatypes.CodeInternal,
		})
	}
}
