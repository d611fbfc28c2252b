// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// Generic GraphQL Response Parser
// =============================================================================

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target
// type.
//
// # Description
//
// Encapsulates the marshal/unmarshal round trip needed to convert
// Weaviate's dynamic response data into a strongly-typed struct. The target
// type T must have json tags matching the expected response shape.
//
// # Limitations
//
//   - Type mismatches yield zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// =============================================================================
// Query Response Shapes
// =============================================================================

// MaterialQueryResponse is the shape of a CourseMaterial nearText query.
type MaterialQueryResponse struct {
	Get struct {
		CourseMaterial []MaterialResult `json:"CourseMaterial"`
	} `json:"Get"`
}

// MaterialResult is a single course material hit with its similarity score.
type MaterialResult struct {
	SourceID   string `json:"source_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	Kind       string `json:"kind"`
	Additional struct {
		Certainty *float64 `json:"certainty"`
	} `json:"_additional"`
}

// TurnQueryResponse is the shape of a ConversationTurn tail query.
type TurnQueryResponse struct {
	Get struct {
		ConversationTurn []TurnResult `json:"ConversationTurn"`
	} `json:"Get"`
}

// TurnResult is a single persisted turn as returned by GraphQL.
type TurnResult struct {
	SessionID  string  `json:"session_id"`
	Role       string  `json:"role"`
	Text       string  `json:"text"`
	Timestamp  float64 `json:"timestamp"`
	Seq        int64   `json:"seq"`
	Additional struct {
		ID string `json:"id"`
	} `json:"_additional"`
}
