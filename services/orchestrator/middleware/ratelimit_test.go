// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/ratelimit"
)

func newLimitedRouter(limit int64) *gin.Engine {
	limiter := ratelimit.New(ratelimit.Config{
		Limit:  limit,
		Period: time.Minute,
	}, nil)

	router := gin.New()
	router.Use(RateLimitMiddleware(limiter, nil))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router
}

// TestRateLimitMiddleware_AllowsWithinBudget passes requests through
// until the budget runs out.
func TestRateLimitMiddleware_AllowsWithinBudget(t *testing.T) {
	router := newLimitedRouter(2)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-User-ID", "student-1")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}
}

// TestRateLimitMiddleware_RejectsOverBudget verifies the 429 carries a
// whole-second retry hint in both the header and the body.
func TestRateLimitMiddleware_RejectsOverBudget(t *testing.T) {
	router := newLimitedRouter(1)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-User-ID", "student-1")
	router.ServeHTTP(first, req)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-User-ID", "student-1")
	router.ServeHTTP(second, req)
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	headerSeconds, err := strconv.ParseInt(second.Header().Get("Retry-After"), 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, headerSeconds, int64(1))
	assert.LessOrEqual(t, headerSeconds, int64(60))

	var body datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, datatypes.CodeRateLimitExceeded, body.Code)
	assert.Equal(t, headerSeconds, body.RetryAfterSeconds)
}

// TestRateLimitMiddleware_IdentityIsolation keeps budgets per user.
func TestRateLimitMiddleware_IdentityIsolation(t *testing.T) {
	router := newLimitedRouter(1)

	for _, user := range []string{"student-1", "student-2"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-User-ID", user)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "user %s", user)
	}
}
