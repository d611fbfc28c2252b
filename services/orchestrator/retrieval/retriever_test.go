// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

// materialResponse builds a GraphQL response shaped like a CourseMaterial
// query result.
func materialResponse(hits []map[string]interface{}) *models.GraphQLResponse {
	return &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"CourseMaterial": hits,
			},
		},
	}
}

func hit(sourceID, name, content string, certainty float64) map[string]interface{} {
	return map[string]interface{}{
		"source_id": sourceID,
		"name":      name,
		"content":   content,
		"kind":      "lecture",
		"_additional": map[string]interface{}{
			"certainty": certainty,
		},
	}
}

// TestParseExcerpts_SortedByScore verifies hits come back ordered by
// descending score.
func TestParseExcerpts_SortedByScore(t *testing.T) {
	resp := materialResponse([]map[string]interface{}{
		hit("m1", "low.pdf", "low relevance", 0.42),
		hit("m2", "high.pdf", "high relevance", 0.94),
		hit("m3", "mid.pdf", "mid relevance", 0.71),
	})

	excerpts, err := ParseExcerpts(resp, 400)
	require.NoError(t, err)
	require.Len(t, excerpts, 3)

	assert.Equal(t, "high.pdf", excerpts[0].Name)
	assert.Equal(t, "mid.pdf", excerpts[1].Name)
	assert.Equal(t, "low.pdf", excerpts[2].Name)
}

// TestParseExcerpts_Truncation verifies long content is cut to the
// configured excerpt size.
func TestParseExcerpts_Truncation(t *testing.T) {
	long := strings.Repeat("a", 1000)
	resp := materialResponse([]map[string]interface{}{
		hit("m1", "big.pdf", long, 0.9),
	})

	excerpts, err := ParseExcerpts(resp, 400)
	require.NoError(t, err)
	require.Len(t, excerpts, 1)
	assert.LessOrEqual(t, len(excerpts[0].Excerpt), 400)
}

// TestParseExcerpts_SkipsEmptyContent verifies hits without content are
// dropped rather than rendered as empty blocks.
func TestParseExcerpts_SkipsEmptyContent(t *testing.T) {
	resp := materialResponse([]map[string]interface{}{
		hit("m1", "empty.pdf", "", 0.9),
		hit("m2", "real.pdf", "actual notes", 0.8),
	})

	excerpts, err := ParseExcerpts(resp, 400)
	require.NoError(t, err)
	require.Len(t, excerpts, 1)
	assert.Equal(t, "real.pdf", excerpts[0].Name)
}

// TestParseExcerpts_MissingCertainty verifies a hit without the
// certainty field gets score zero instead of failing the parse.
func TestParseExcerpts_MissingCertainty(t *testing.T) {
	resp := materialResponse([]map[string]interface{}{
		{
			"source_id": "m1",
			"name":      "noscore.pdf",
			"content":   "some text",
			"kind":      "notes",
		},
	})

	excerpts, err := ParseExcerpts(resp, 400)
	require.NoError(t, err)
	require.Len(t, excerpts, 1)
	assert.Zero(t, excerpts[0].Score)
}

// TestParseExcerpts_GraphQLError verifies response-level errors surface.
func TestParseExcerpts_GraphQLError(t *testing.T) {
	resp := &models.GraphQLResponse{
		Errors: []*models.GraphQLError{{Message: "class not found"}},
	}

	_, err := ParseExcerpts(resp, 400)
	assert.Error(t, err)
}

// TestRetrieve_NilClient verifies retrieval degrades to no excerpts when
// Weaviate is not configured.
func TestRetrieve_NilClient(t *testing.T) {
	r := NewWeaviateRetriever(nil, DefaultConfig())

	excerpts := r.Retrieve(context.Background(), "calculus", "chain rule", 3)
	assert.Nil(t, excerpts)
}
