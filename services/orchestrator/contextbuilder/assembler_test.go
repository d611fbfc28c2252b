// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package contextbuilder

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

func academicClassification() datatypes.Classification {
	return datatypes.Classification{
		Intent:       datatypes.IntentAcademic,
		NeedsRAG:     true,
		NeedsHistory: true,
		Confidence:   0.9,
	}
}

// TestAssemble_SegmentOrder verifies the fixed segment order: system,
// history, current message.
func TestAssemble_SegmentOrder(t *testing.T) {
	a := New(Config{})

	out, err := a.Assemble(Input{
		Classification: academicClassification(),
		History: []datatypes.ConversationTurn{
			{Role: datatypes.RoleUser, Text: "What is a limit?", Seq: 1},
			{Role: datatypes.RoleAssistant, Text: "A value a function approaches.", Seq: 2},
		},
		Message: "And a derivative?",
	})
	require.NoError(t, err)
	require.Len(t, out.Segments, 4)

	assert.Equal(t, datatypes.RoleSystem, out.Segments[0].Role)
	assert.Equal(t, datatypes.RoleUser, out.Segments[1].Role)
	assert.Equal(t, "What is a limit?", out.Segments[1].Content)
	assert.Equal(t, datatypes.RoleAssistant, out.Segments[2].Role)
	assert.Equal(t, datatypes.RoleUser, out.Segments[3].Role)
	assert.Equal(t, "And a derivative?", out.Segments[3].Content)
}

// TestAssemble_ChitchatMinimal verifies a casual turn gets the smallest
// viable context: preamble system segment plus the message, no history,
// no preferences, no materials.
func TestAssemble_ChitchatMinimal(t *testing.T) {
	a := New(Config{})

	out, err := a.Assemble(Input{
		Preferences: &datatypes.Preferences{Style: "socratic"},
		Classification: datatypes.Classification{
			Intent:       datatypes.IntentChat,
			NeedsRAG:     false,
			NeedsHistory: false,
			Confidence:   0.95,
		},
		History: []datatypes.ConversationTurn{
			{Role: datatypes.RoleUser, Text: "earlier", Seq: 1},
		},
		Message: "Hello!",
	})
	require.NoError(t, err)
	require.Len(t, out.Segments, 2, "system + message only")

	system := out.Segments[0].Content
	assert.Contains(t, system, "StudyMate")
	assert.NotContains(t, system, "socratic", "preferences omitted for chitchat")
	assert.NotContains(t, system, "Relevant course materials:", "no materials block")
}

// TestAssemble_MaterialsBlock verifies the numbered excerpt rendering
// with name and score.
func TestAssemble_MaterialsBlock(t *testing.T) {
	a := New(Config{})

	out, err := a.Assemble(Input{
		Classification: academicClassification(),
		Excerpts: []datatypes.MaterialExcerpt{
			{Name: "lecture3.pdf", Excerpt: "The chain rule states...", Score: 0.91},
			{Name: "notes.md", Excerpt: "Composite functions...", Score: 0.84},
		},
		Message: "Explain the chain rule",
	})
	require.NoError(t, err)

	system := out.Segments[0].Content
	assert.Contains(t, system, "Relevant course materials:")
	assert.Contains(t, system, "[1] lecture3.pdf (relevance 0.91)")
	assert.Contains(t, system, "The chain rule states...")
	assert.Contains(t, system, "[2] notes.md (relevance 0.84)")
}

// TestAssemble_ProfileAndPreferences verifies study-related turns carry
// the profile summary and preferences in the system segment.
func TestAssemble_ProfileAndPreferences(t *testing.T) {
	a := New(Config{})

	out, err := a.Assemble(Input{
		Profile:        &datatypes.Profile{UserID: "u1", Level: "undergraduate", Subject: "calculus"},
		Preferences:    &datatypes.Preferences{Style: "socratic", Detail: "thorough"},
		Classification: academicClassification(),
		Message:        "What is a derivative?",
	})
	require.NoError(t, err)

	system := out.Segments[0].Content
	assert.Contains(t, system, "undergraduate level, studying calculus")
	assert.Contains(t, system, "style: socratic")
	assert.Contains(t, system, "detail: thorough")
}

// TestAssemble_HistoryWindow verifies only the newest ten turns survive.
func TestAssemble_HistoryWindow(t *testing.T) {
	a := New(Config{})

	history := make([]datatypes.ConversationTurn, 0, 14)
	for i := 0; i < 14; i++ {
		history = append(history, datatypes.ConversationTurn{
			Role: datatypes.RoleUser,
			Text: fmt.Sprintf("turn %d", i),
			Seq:  int64(i + 1),
		})
	}

	out, err := a.Assemble(Input{
		Classification: academicClassification(),
		History:        history,
		Message:        "latest question",
	})
	require.NoError(t, err)

	// system + 10 history + message
	require.Len(t, out.Segments, 12)
	assert.Equal(t, "turn 4", out.Segments[1].Content, "oldest kept turn")
	assert.Equal(t, "turn 13", out.Segments[10].Content, "newest history turn")
}

// TestAssemble_CharBudget verifies history yields oldest-first when the
// budget is tight, and the system segment plus message always survive.
func TestAssemble_CharBudget(t *testing.T) {
	a := New(Config{HistoryWindow: 10, CharBudget: 600})

	big := strings.Repeat("x", 200)
	history := []datatypes.ConversationTurn{
		{Role: datatypes.RoleUser, Text: big, Seq: 1},
		{Role: datatypes.RoleAssistant, Text: big, Seq: 2},
		{Role: datatypes.RoleUser, Text: "short recent turn", Seq: 3},
	}

	out, err := a.Assemble(Input{
		Classification: academicClassification(),
		History:        history,
		Message:        "fits",
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, out.CharSize, 600+len(out.Segments[0].Content),
		"history must shrink toward the budget")
	assert.Equal(t, datatypes.RoleSystem, out.Segments[0].Role)
	assert.Equal(t, "fits", out.Segments[len(out.Segments)-1].Content)

	var texts []string
	for _, seg := range out.Segments[1 : len(out.Segments)-1] {
		texts = append(texts, seg.Content)
	}
	assert.Contains(t, texts, "short recent turn", "newest history survives")
}

// TestAssemble_EmptyMessage verifies the only error case.
func TestAssemble_EmptyMessage(t *testing.T) {
	a := New(Config{})

	_, err := a.Assemble(Input{
		Classification: academicClassification(),
		Message:        "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

// TestAssemble_NoHistoryWhenNotNeeded verifies history is dropped
// entirely when the classification does not ask for it.
func TestAssemble_NoHistoryWhenNotNeeded(t *testing.T) {
	a := New(Config{})

	out, err := a.Assemble(Input{
		Classification: datatypes.Classification{
			Intent:   datatypes.IntentAcademic,
			NeedsRAG: true,
		},
		History: []datatypes.ConversationTurn{
			{Role: datatypes.RoleUser, Text: "old turn", Seq: 1},
		},
		Message: "fresh question",
	})
	require.NoError(t, err)
	assert.Len(t, out.Segments, 2)
}
