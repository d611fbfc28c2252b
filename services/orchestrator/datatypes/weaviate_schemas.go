// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Weaviate class names used by this subsystem.
const (
	// CourseMaterialClass holds embedded course material chunks. Writes
	// happen in the upload subsystem; the orchestrator only queries it.
	CourseMaterialClass = "CourseMaterial"

	// ConversationTurnClass is the append-only turn log backing the
	// Weaviate conversation store.
	ConversationTurnClass = "ConversationTurn"
)

// GetCourseMaterialSchema returns the class definition for embedded course
// material chunks. Vectorization is delegated to the configured module so
// nearText queries work without client-side embeddings.
func GetCourseMaterialSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       CourseMaterialClass,
		Description: "An embedded chunk of uploaded course material.",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "course_id",
				DataType:        []string{"text"},
				Description:     "The course this chunk belongs to (retrieval scope).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "source_id",
				DataType:        []string{"text"},
				Description:     "Stable identifier of the source material.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "name",
				DataType:     []string{"text"},
				Description:  "Display name of the source material.",
				Tokenization: "word",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The chunk text used for similarity search.",
				Tokenization: "word",
			},
			{
				Name:            "kind",
				DataType:        []string{"text"},
				Description:     "Source kind tag (pdf, notes, slide, ...).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

// GetConversationTurnSchema returns the class definition for persisted
// conversation turns. No vectorizer: turns are fetched by filter and sort,
// never by similarity.
func GetConversationTurnSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ConversationTurnClass,
		Description: "One message in a tutoring session's turn log.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "The unique ID for the tutoring session.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "role",
				DataType:        []string{"text"},
				Description:     "Turn author: user or assistant.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "text",
				DataType:     []string{"text"},
				Description:  "The turn content.",
				Tokenization: "word",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Turn creation time, Unix milliseconds.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "seq",
				DataType:        []string{"int"},
				Description:     "Monotonic sequence number within the session.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureWeaviateSchema creates the classes this subsystem reads and writes
// when they do not exist yet. Existing classes are left untouched; schema
// migration is out of scope here.
func EnsureWeaviateSchema(ctx context.Context, client *weaviate.Client) error {
	schemaGetters := []func() *models.Class{
		GetCourseMaterialSchema,
		GetConversationTurnSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()

		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
		if err == nil {
			slog.Debug("Schema already exists", "class", class.Class)
			continue
		}

		slog.Info("Schema not found, creating it", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return err
		}
	}
	return nil
}
