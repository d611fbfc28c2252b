// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval returns ranked course material excerpts for a query.
//
// The nearest-neighbor search itself is delegated to Weaviate; this package
// owns query shaping, the excerpt cap, excerpt truncation, and graceful
// degradation. Retrieval never fails a turn: every error path resolves to
// an empty excerpt list with a warning log, and the context assembler
// simply proceeds without a materials block.
package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("studymate.orchestrator.retrieval")

// =============================================================================
// Interface
// =============================================================================

// Retriever returns ranked material excerpts for a query within a scope.
//
// Implementations must degrade to an empty slice on any upstream failure;
// the error return exists only for caller contract violations.
type Retriever interface {
	Retrieve(ctx context.Context, scope, query string, limit int) []datatypes.MaterialExcerpt
}

// =============================================================================
// Config
// =============================================================================

// Config bounds what retrieval may add to the downstream context budget.
type Config struct {
	// MaxExcerpts caps how many excerpts one retrieval may return.
	MaxExcerpts int

	// ExcerptMaxChars truncates each excerpt's text.
	ExcerptMaxChars int

	// Timeout is the per-call cap on the similarity search. On expiry the
	// turn continues without material context.
	Timeout time.Duration
}

// DefaultConfig returns the production retrieval configuration.
func DefaultConfig() Config {
	return Config{
		MaxExcerpts:     3,
		ExcerptMaxChars: 400,
		Timeout:         5 * time.Second,
	}
}

// =============================================================================
// Weaviate Implementation
// =============================================================================

// Compile-time interface compliance check.
var _ Retriever = (*WeaviateRetriever)(nil)

// WeaviateRetriever implements Retriever over the CourseMaterial class.
//
// # Thread Safety
//
// Safe for concurrent use; the Weaviate client handles connection pooling.
type WeaviateRetriever struct {
	client *weaviate.Client
	config Config
}

// NewWeaviateRetriever creates a retriever with the given client and
// configuration. A nil client is allowed and yields empty results, which
// keeps the pipeline functional in lightweight deployments without a
// vector database.
func NewWeaviateRetriever(client *weaviate.Client, config Config) *WeaviateRetriever {
	defaults := DefaultConfig()
	if config.MaxExcerpts <= 0 {
		config.MaxExcerpts = defaults.MaxExcerpts
	}
	if config.ExcerptMaxChars <= 0 {
		config.ExcerptMaxChars = defaults.ExcerptMaxChars
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &WeaviateRetriever{client: client, config: config}
}

// Retrieve runs a nearText similarity search scoped to one course.
//
// # Description
//
// Shapes the query, caps the limit at MaxExcerpts, truncates each hit to
// ExcerptMaxChars, and returns hits sorted descending by certainty. Missing
// scope materials produce an empty list, not an error; so do Weaviate
// errors and timeouts (logged as warnings).
func (r *WeaviateRetriever) Retrieve(ctx context.Context, scope, query string, limit int) []datatypes.MaterialExcerpt {
	ctx, span := tracer.Start(ctx, "WeaviateRetriever.Retrieve")
	defer span.End()

	if r.client == nil || query == "" {
		return nil
	}

	limit = capLimit(limit, r.config.MaxExcerpts)
	span.SetAttributes(
		attribute.String("retrieval.scope", scope),
		attribute.Int("retrieval.limit", limit),
	)

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	where := filters.Where().
		WithPath([]string{"course_id"}).
		WithOperator(filters.Equal).
		WithValueString(scope)

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "source_id"},
		{Name: "name"},
		{Name: "content"},
		{Name: "kind"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	resp, err := r.client.GraphQL().Get().
		WithClassName(datatypes.CourseMaterialClass).
		WithWhere(where).
		WithNearText(nearText).
		WithFields(fields...).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		slog.Warn("Material retrieval failed, continuing without context",
			"scope", scope,
			"error", err,
		)
		return nil
	}

	excerpts, err := ParseExcerpts(resp, r.config.ExcerptMaxChars)
	if err != nil {
		span.RecordError(err)
		slog.Warn("Material retrieval parse failed, continuing without context",
			"scope", scope,
			"error", err,
		)
		return nil
	}

	if len(excerpts) > limit {
		excerpts = excerpts[:limit]
	}
	span.SetAttributes(attribute.Int("retrieval.excerpts", len(excerpts)))
	return excerpts
}

// ParseExcerpts converts a CourseMaterial query response into sorted,
// truncated excerpts. Exported for use by the retrieval tests.
func ParseExcerpts(resp *models.GraphQLResponse, maxChars int) ([]datatypes.MaterialExcerpt, error) {
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.MaterialQueryResponse](resp)
	if err != nil {
		return nil, err
	}

	excerpts := make([]datatypes.MaterialExcerpt, 0, len(parsed.Get.CourseMaterial))
	for _, hit := range parsed.Get.CourseMaterial {
		if hit.Content == "" {
			continue
		}
		score := 0.0
		if hit.Additional.Certainty != nil {
			score = clampScore(*hit.Additional.Certainty)
		}
		excerpts = append(excerpts, datatypes.MaterialExcerpt{
			SourceID: hit.SourceID,
			Name:     hit.Name,
			Excerpt:  truncateExcerpt(hit.Content, maxChars),
			Score:    score,
			Kind:     hit.Kind,
		})
	}

	datatypes.SortExcerptsByScore(excerpts)
	return excerpts, nil
}

// capLimit bounds a requested limit to [1, ceiling].
func capLimit(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}

// truncateExcerpt bounds excerpt text without splitting a rune.
func truncateExcerpt(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
