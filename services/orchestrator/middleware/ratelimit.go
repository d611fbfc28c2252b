// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/observability"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/ratelimit"
)

// RateLimitMiddleware rejects requests that exceed the per-user budget.
//
// # Description
//
// The window is keyed by Identity: resolved user ID first, falling back
// to the X-User-ID header, then client IP. Rejected requests get a 429
// with a Retry-After header (whole seconds, rounded up, always at least
// one) and a structured error body. Nothing downstream of this
// middleware runs for a rejected request.
func RateLimitMiddleware(limiter *ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		identity := Identity(c)
		decision := limiter.Admit(c.Request.Context(), identity)
		if decision.Allowed {
			c.Next()
			return
		}

		retrySeconds := int64(math.Ceil(decision.RetryAfter.Seconds()))
		if retrySeconds < 1 {
			retrySeconds = 1
		}

		logger.Info("Rate limit exceeded",
			"identity", identity,
			"retry_after_seconds", retrySeconds,
		)
		observability.RateLimitedTotal.Inc()

		c.Header("Retry-After", strconv.FormatInt(retrySeconds, 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, datatypes.ErrorResponse{
			Error:             "rate limit exceeded, slow down",
			Code:              datatypes.CodeRateLimitExceeded,
			RetryAfterSeconds: retrySeconds,
		})
	}
}
