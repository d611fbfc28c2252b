// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/conversation"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

// maxHistoryLimit bounds one history read regardless of the requested
// limit.
const maxHistoryLimit = 100

// HandleSessionHistory returns the newest turns of a session.
//
// # Description
//
// GET /v1/sessions/:sessionId/history?limit=N returns up to N turns
// (default 20, capped at 100) in chronological order. An unknown session
// yields an empty list, not a 404; session IDs are opaque and the store
// cannot distinguish "never existed" from "expired".
func HandleSessionHistory(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleSessionHistory")
		defer span.End()

		sessionID := c.Param("sessionId")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: "session id is required",
				Code:  datatypes.CodeBadRequest,
			})
			return
		}

		limit := 20
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
					Error: "limit must be a positive integer",
					Code:  datatypes.CodeBadRequest,
				})
				return
			}
			limit = parsed
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		turns, err := store.Tail(ctx, sessionID, limit)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "history read failed")
			slog.Error("Session history read failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
				Error: "internal error",
				Code:  datatypes.CodeInternal,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"turns":      turns,
		})
	}
}
