// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shaswata28/StudyMate-sub001/services/llm"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

// MockLLMClient implements llm.LLMClient for classifier tests.
type MockLLMClient struct {
	// GenerateResponse is returned by Generate.
	GenerateResponse string
	// GenerateError is returned as error by Generate.
	GenerateError error
	// GenerateDelay simulates a slow backend.
	GenerateDelay time.Duration
	// LastPrompt stores the last prompt passed to Generate.
	LastPrompt string
	// GenerateCallCount tracks how many times Generate was called.
	GenerateCallCount int
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	m.GenerateCallCount++
	m.LastPrompt = prompt
	if m.GenerateDelay > 0 {
		select {
		case <-time.After(m.GenerateDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.GenerateResponse, m.GenerateError
}

func (m *MockLLMClient) Chat(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
	return "", nil
}

// TestClassify_ValidOutput verifies a well-formed backend answer is
// parsed into a classification.
func TestClassify_ValidOutput(t *testing.T) {
	mock := &MockLLMClient{
		GenerateResponse: `{"intent":"academic","needs_rag":true,"needs_history":false,"confidence":0.92}`,
	}
	c, err := NewLLMClassifier(mock, Config{})
	require.NoError(t, err)

	got := c.Classify(context.Background(), "What is the chain rule?", "calculus", "undergraduate")

	assert.Equal(t, datatypes.IntentAcademic, got.Intent)
	assert.True(t, got.NeedsRAG)
	assert.False(t, got.NeedsHistory)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
	assert.Contains(t, mock.LastPrompt, "What is the chain rule?")
}

// TestClassify_CodeFenceTolerated verifies a markdown fence around the
// JSON is stripped before parsing.
func TestClassify_CodeFenceTolerated(t *testing.T) {
	mock := &MockLLMClient{
		GenerateResponse: "```json\n{\"intent\":\"chat\",\"needs_rag\":false,\"needs_history\":false,\"confidence\":0.8}\n```",
	}
	c, err := NewLLMClassifier(mock, Config{})
	require.NoError(t, err)

	got := c.Classify(context.Background(), "hi there", "", "")
	assert.Equal(t, datatypes.IntentChat, got.Intent)
	assert.False(t, got.NeedsRAG)
}

// TestClassify_SafeDefaultOnFailure verifies every failure mode resolves
// to the safe default, never an error.
func TestClassify_SafeDefaultOnFailure(t *testing.T) {
	tests := []struct {
		name string
		mock *MockLLMClient
	}{
		{"backend error", &MockLLMClient{GenerateError: errors.New("connection refused")}},
		{"malformed json", &MockLLMClient{GenerateResponse: "I think this is academic"}},
		{"unknown intent", &MockLLMClient{GenerateResponse: `{"intent":"poetry","needs_rag":true,"needs_history":true,"confidence":0.7}`}},
		{"empty output", &MockLLMClient{GenerateResponse: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewLLMClassifier(tt.mock, Config{})
			require.NoError(t, err)

			got := c.Classify(context.Background(), "some question", "", "")
			assert.Equal(t, datatypes.SafeDefaultClassification(), got)
		})
	}
}

// TestClassify_TimeoutFallsBack verifies a slow backend resolves to the
// safe default once the classification timeout fires.
func TestClassify_TimeoutFallsBack(t *testing.T) {
	mock := &MockLLMClient{
		GenerateResponse: `{"intent":"chat","needs_rag":false,"needs_history":false,"confidence":0.9}`,
		GenerateDelay:    200 * time.Millisecond,
	}
	c, err := NewLLMClassifier(mock, Config{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	got := c.Classify(context.Background(), "slow one", "", "")

	assert.Equal(t, datatypes.SafeDefaultClassification(), got)
	assert.Less(t, time.Since(start), 150*time.Millisecond,
		"must not wait for the slow backend")
}

// TestClassify_ConfidenceClamped verifies out-of-range confidence values
// are clamped into [0, 1].
func TestClassify_ConfidenceClamped(t *testing.T) {
	mock := &MockLLMClient{
		GenerateResponse: `{"intent":"debug","needs_rag":false,"needs_history":true,"confidence":3.5}`,
	}
	c, err := NewLLMClassifier(mock, Config{})
	require.NoError(t, err)

	got := c.Classify(context.Background(), "why does my proof fail", "", "")
	assert.Equal(t, datatypes.IntentDebug, got.Intent)
	assert.Equal(t, 1.0, got.Confidence)
}

// TestNewLLMClassifier_NilClient verifies construction fails without a
// backend.
func TestNewLLMClassifier_NilClient(t *testing.T) {
	_, err := NewLLMClassifier(nil, Config{})
	assert.Error(t, err)
}

// TestSafeDefault_IsMostConservative verifies the routing default keeps
// every capability enabled with zero confidence.
func TestSafeDefault_IsMostConservative(t *testing.T) {
	def := datatypes.SafeDefaultClassification()
	assert.Equal(t, datatypes.IntentAcademic, def.Intent)
	assert.True(t, def.NeedsRAG)
	assert.True(t, def.NeedsHistory)
	assert.Zero(t, def.Confidence)
}
