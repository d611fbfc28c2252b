// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shaswata28/StudyMate-sub001/pkg/extensions"
	"github.com/Shaswata28/StudyMate-sub001/services/llm"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/contextbuilder"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/conversation"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/middleware"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/ratelimit"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Test Fixtures
// =============================================================================

// MockLLMClient implements llm.LLMClient for handler tests.
type MockLLMClient struct {
	ChatResponse string
	ChatError    error
}

func (m *MockLLMClient) Chat(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
	return m.ChatResponse, m.ChatError
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return "", nil
}

// StubClassifier returns a fixed classification.
type StubClassifier struct {
	Result datatypes.Classification
}

func (s *StubClassifier) Classify(ctx context.Context, query, subject, level string) datatypes.Classification {
	return s.Result
}

// StubRetriever returns no excerpts.
type StubRetriever struct{}

func (s *StubRetriever) Retrieve(ctx context.Context, scope, query string, limit int) []datatypes.MaterialExcerpt {
	return nil
}

// newTestRouter builds a router with the chat route backed by the given
// mock LLM.
func newTestRouter(mock *MockLLMClient) *gin.Engine {
	pipeline := services.NewTutorPipeline(
		&StubClassifier{Result: datatypes.Classification{Intent: datatypes.IntentChat, Confidence: 0.9}},
		&StubRetriever{},
		mock,
		conversation.NewMemoryStore(),
		contextbuilder.New(contextbuilder.Config{}),
		extensions.DefaultOptions(),
		services.PipelineConfig{},
		nil,
	)

	router := gin.New()
	router.POST("/v1/tutor/chat", HandleTutorChat(pipeline))
	return router
}

func postChat(router *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/tutor/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Tests
// =============================================================================

// TestHandleTutorChat_Success verifies the happy path: 200, RFC3339
// timestamp, echoed session header.
func TestHandleTutorChat_Success(t *testing.T) {
	router := newTestRouter(&MockLLMClient{ChatResponse: "Hi! What are we studying today?"})

	w := postChat(router, `{"message": "Hello!"}`, map[string]string{"X-Session-ID": "sess-abc"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.TutorChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "Hi! What are we studying today?", resp.Response)
	assert.Equal(t, "sess-abc", resp.SessionID)
	assert.Equal(t, "sess-abc", w.Header().Get("X-Session-ID"))

	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err, "timestamp must be RFC3339")
}

// TestHandleTutorChat_GeneratesSession verifies a session id is minted
// and echoed when the client sends none.
func TestHandleTutorChat_GeneratesSession(t *testing.T) {
	router := newTestRouter(&MockLLMClient{ChatResponse: "ok"})

	w := postChat(router, `{"message": "Hello!"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Session-ID"))
}

// TestHandleTutorChat_MalformedBody verifies invalid JSON gets 400.
func TestHandleTutorChat_MalformedBody(t *testing.T) {
	router := newTestRouter(&MockLLMClient{ChatResponse: "unused"})

	w := postChat(router, `{"message": `, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.CodeBadRequest, resp.Code)
}

// TestHandleTutorChat_ValidationFailure verifies well-formed but invalid
// bodies get 422 with field detail.
func TestHandleTutorChat_ValidationFailure(t *testing.T) {
	router := newTestRouter(&MockLLMClient{ChatResponse: "unused"})

	long := strings.Repeat("x", 2001)
	w := postChat(router, `{"message": "`+long+`"}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.CodeValidationFailed, resp.Code)
	require.NotEmpty(t, resp.Fields, "field detail must be present")
	assert.Equal(t, "message", strings.ToLower(resp.Fields[0].Field))
}

// TestHandleTutorChat_BlankMessage verifies a whitespace-only message is
// a validation failure, not an internal error.
func TestHandleTutorChat_BlankMessage(t *testing.T) {
	router := newTestRouter(&MockLLMClient{ChatResponse: "unused"})

	w := postChat(router, `{"message": "   "}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.CodeValidationFailed, resp.Code)
	require.NotEmpty(t, resp.Fields)
	assert.Equal(t, "message", strings.ToLower(resp.Fields[0].Field))
}

// TestHandleTutorChat_GenerationUnavailable verifies backend failures
// map to 503 with a user-friendly message.
func TestHandleTutorChat_GenerationUnavailable(t *testing.T) {
	router := newTestRouter(&MockLLMClient{ChatError: errors.New("model host unreachable")})

	w := postChat(router, `{"message": "Hello!"}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.CodeGenerationUnavailable, resp.Code)
	assert.NotContains(t, resp.Error, "unreachable", "internal detail must not leak")
}

// TestHandleTutorChat_RateLimited verifies the middleware returns 429
// with a Retry-After header once the budget is spent.
func TestHandleTutorChat_RateLimited(t *testing.T) {
	mock := &MockLLMClient{ChatResponse: "ok"}
	pipeline := services.NewTutorPipeline(
		&StubClassifier{Result: datatypes.Classification{Intent: datatypes.IntentChat, Confidence: 0.9}},
		&StubRetriever{},
		mock,
		conversation.NewMemoryStore(),
		contextbuilder.New(contextbuilder.Config{}),
		extensions.DefaultOptions(),
		services.PipelineConfig{},
		nil,
	)
	limiter := ratelimit.New(ratelimit.Config{Limit: 2, Period: time.Minute}, nil)

	router := gin.New()
	router.POST("/v1/tutor/chat",
		middleware.RateLimitMiddleware(limiter, nil),
		HandleTutorChat(pipeline),
	)

	headers := map[string]string{"X-User-ID": "student-x"}
	require.Equal(t, http.StatusOK, postChat(router, `{"message": "one"}`, headers).Code)
	require.Equal(t, http.StatusOK, postChat(router, `{"message": "two"}`, headers).Code)

	w := postChat(router, `{"message": "three"}`, headers)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.CodeRateLimitExceeded, resp.Code)
	assert.Positive(t, resp.RetryAfterSeconds)
}

// TestHandleSessionHistory verifies the history read endpoint.
func TestHandleSessionHistory(t *testing.T) {
	store := conversation.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "sess-h", datatypes.RoleUser, "q1"))
	require.NoError(t, store.Append(ctx, "sess-h", datatypes.RoleAssistant, "a1"))

	router := gin.New()
	router.GET("/v1/sessions/:sessionId/history", HandleSessionHistory(store))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess-h/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SessionID string                       `json:"session_id"`
		Turns     []datatypes.ConversationTurn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-h", resp.SessionID)
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, "q1", resp.Turns[0].Text)
}

// TestHandleSessionHistory_BadLimit verifies a non-numeric limit is a
// 400.
func TestHandleSessionHistory_BadLimit(t *testing.T) {
	router := gin.New()
	router.GET("/v1/sessions/:sessionId/history", HandleSessionHistory(conversation.NewMemoryStore()))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s/history?limit=abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
