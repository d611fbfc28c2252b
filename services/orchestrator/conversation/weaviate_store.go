// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

var weaviateTracer = otel.Tracer("studymate.orchestrator.conversation")

// WeaviateStore persists turns as ConversationTurn objects so history
// survives restarts and is shared across instances.
//
// Per-session ordering is guaranteed by a local sequence counter per
// session; Weaviate itself only stores the values.
type WeaviateStore struct {
	client *weaviate.Client
	logger *slog.Logger

	mu   sync.Mutex
	seqs map[string]*sessionSeq
}

type sessionSeq struct {
	mu  sync.Mutex
	seq int64
}

var _ Store = (*WeaviateStore)(nil)

// NewWeaviateStore creates a persistent store backed by the given client.
func NewWeaviateStore(client *weaviate.Client, logger *slog.Logger) *WeaviateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaviateStore{
		client: client,
		logger: logger,
		seqs:   make(map[string]*sessionSeq),
	}
}

// sessionCounter returns the lock-carrying counter for one session.
func (s *WeaviateStore) sessionCounter(sessionID string) *sessionSeq {
	s.mu.Lock()
	defer s.mu.Unlock()
	counter, ok := s.seqs[sessionID]
	if !ok {
		counter = &sessionSeq{}
		s.seqs[sessionID] = counter
	}
	return counter
}

// Append persists one turn as a ConversationTurn object.
func (s *WeaviateStore) Append(ctx context.Context, sessionID string, role, text string) error {
	ctx, span := weaviateTracer.Start(ctx, "conversation.weaviate.append")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	counter := s.sessionCounter(sessionID)
	counter.mu.Lock()
	defer counter.mu.Unlock()
	counter.seq++

	now := time.Now().UTC()
	_, err := s.client.Data().Creator().
		WithClassName(datatypes.ConversationTurnClass).
		WithID(uuid.NewString()).
		WithProperties(map[string]any{
			"session_id": sessionID,
			"role":       role,
			"text":       text,
			"timestamp":  float64(now.UnixNano()) / 1e9,
			"seq":        counter.seq,
		}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to persist conversation turn: %w", err)
	}
	return nil
}

// Tail fetches the newest n turns for a session, returned in
// chronological order. The query sorts newest first; the result is
// reversed before returning.
func (s *WeaviateStore) Tail(ctx context.Context, sessionID string, n int) ([]datatypes.ConversationTurn, error) {
	ctx, span := weaviateTracer.Start(ctx, "conversation.weaviate.tail")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("tail.n", n),
	)

	if n <= 0 {
		return []datatypes.ConversationTurn{}, nil
	}

	where := filters.Where().
		WithPath([]string{"session_id"}).
		WithOperator(filters.Equal).
		WithValueText(sessionID)

	sortBySeq := graphql.Sort{Path: []string{"seq"}, Order: graphql.Desc}

	resp, err := s.client.GraphQL().Get().
		WithClassName(datatypes.ConversationTurnClass).
		WithFields(
			graphql.Field{Name: "session_id"},
			graphql.Field{Name: "role"},
			graphql.Field{Name: "text"},
			graphql.Field{Name: "timestamp"},
			graphql.Field{Name: "seq"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
		).
		WithWhere(where).
		WithSort(sortBySeq).
		WithLimit(n).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation history: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.TurnQueryResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse conversation history: %w", err)
	}

	results := parsed.Get.ConversationTurn
	turns := make([]datatypes.ConversationTurn, 0, len(results))
	// Newest-first from the query; walk backwards to restore
	// chronological order.
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		sec := int64(r.Timestamp)
		nsec := int64((r.Timestamp - float64(sec)) * 1e9)
		turns = append(turns, datatypes.ConversationTurn{
			ID:        r.Additional.ID,
			SessionID: r.SessionID,
			Role:      r.Role,
			Text:      r.Text,
			CreatedAt: time.Unix(sec, nsec).UTC(),
			Seq:       r.Seq,
		})
	}

	s.logger.Debug("Loaded session history",
		"session_id", sessionID,
		"turns", len(turns),
	)
	return turns, nil
}
