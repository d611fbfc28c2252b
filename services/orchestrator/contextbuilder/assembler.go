// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package contextbuilder assembles the bounded prompt sent to generation.
//
// Assembly is pure and local: no I/O, no suspension. The output order is
// fixed: one system segment, then history turns (only when the
// classification asks for them), then the current user message. The
// total character size never exceeds the configured budget.
package contextbuilder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

// ErrEmptyMessage is returned when the caller passes an empty current
// message. That is a caller contract violation; every optional input may
// be absent without error.
var ErrEmptyMessage = errors.New("current user message is empty")

// rolePreamble is the fixed first part of every system segment.
const rolePreamble = "You are StudyMate, a patient study tutor. Explain " +
	"step by step, prefer the student's own course materials when provided, " +
	"and say so plainly when you are unsure rather than guessing."

// =============================================================================
// Config
// =============================================================================

// Config bounds the assembled context.
type Config struct {
	// HistoryWindow is the hard cap on history turns (sliding window,
	// newest kept).
	HistoryWindow int

	// CharBudget caps the cumulative content size of all segments.
	CharBudget int
}

// DefaultConfig returns the production assembler configuration.
func DefaultConfig() Config {
	return Config{
		HistoryWindow: 10,
		CharBudget:    24000,
	}
}

// =============================================================================
// Assembler
// =============================================================================

// Input carries everything assembly may use. Profile and Preferences are
// optional; their blocks are simply omitted when absent.
type Input struct {
	Profile        *datatypes.Profile
	Preferences    *datatypes.Preferences
	Classification datatypes.Classification
	Excerpts       []datatypes.MaterialExcerpt
	History        []datatypes.ConversationTurn
	Message        string
}

// Assembler builds bounded contexts. Stateless and safe for concurrent use.
type Assembler struct {
	config Config
}

// New creates an Assembler, applying defaults for zero config values.
func New(config Config) *Assembler {
	defaults := DefaultConfig()
	if config.HistoryWindow <= 0 {
		config.HistoryWindow = defaults.HistoryWindow
	}
	if config.CharBudget <= 0 {
		config.CharBudget = defaults.CharBudget
	}
	return &Assembler{config: config}
}

// Assemble builds the ordered, bounded context for one turn.
//
// # Description
//
// Segment order is fixed: system, history (only if NeedsHistory), current
// user message. The system segment is built incrementally from parts that
// are only included when relevant:
//
//  1. the fixed role preamble (always)
//  2. profile summary: level and subject only (when a profile is present)
//  3. preference summary (only when the turn is study-related)
//  4. numbered materials block (only when excerpts exist)
//
// When the budget would be exceeded, history turns are dropped oldest
// first; the system segment and current message are always kept.
//
// # Outputs
//
//   - *datatypes.AssembledContext: never nil on success; Segments[0] is
//     the system segment.
//   - error: only ErrEmptyMessage.
func (a *Assembler) Assemble(in Input) (*datatypes.AssembledContext, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrEmptyMessage
	}

	system := a.buildSystemSegment(in)

	var history []datatypes.ConversationTurn
	if in.Classification.NeedsHistory {
		history = windowHistory(in.History, a.config.HistoryWindow)
	}

	// Budget accounting: system + current message are non-negotiable;
	// history yields from the oldest end until the rest fits.
	fixed := len(system) + len(in.Message)
	for len(history) > 0 && fixed+historySize(history) > a.config.CharBudget {
		history = history[1:]
	}

	segments := make([]datatypes.Message, 0, len(history)+2)
	segments = append(segments, datatypes.Message{Role: datatypes.RoleSystem, Content: system})
	for _, turn := range history {
		segments = append(segments, datatypes.Message{Role: turn.Role, Content: turn.Text})
	}
	segments = append(segments, datatypes.Message{Role: datatypes.RoleUser, Content: in.Message})

	size := 0
	for _, seg := range segments {
		size += len(seg.Content)
	}

	return &datatypes.AssembledContext{Segments: segments, CharSize: size}, nil
}

// buildSystemSegment renders the incremental system segment.
func (a *Assembler) buildSystemSegment(in Input) string {
	var b strings.Builder
	b.WriteString(rolePreamble)

	if in.Profile != nil {
		b.WriteString("\n\nStudent: ")
		b.WriteString(profileSummary(in.Profile))
	}

	if includePreferences(in.Classification) && in.Preferences != nil && !in.Preferences.Empty() {
		b.WriteString("\nPreferences: ")
		b.WriteString(preferenceSummary(in.Preferences))
	}

	if len(in.Excerpts) > 0 {
		b.WriteString("\n\nRelevant course materials:\n")
		b.WriteString(materialsBlock(in.Excerpts))
	}

	return b.String()
}

// includePreferences reports whether the turn is study-related enough to
// spend budget on learning preferences. Pure chitchat omits them.
func includePreferences(c datatypes.Classification) bool {
	switch c.Intent {
	case datatypes.IntentChat:
		return c.NeedsRAG
	case datatypes.IntentAcademic, datatypes.IntentDebug, datatypes.IntentFollowup, datatypes.IntentSafety:
		return c.NeedsRAG || c.Intent == datatypes.IntentAcademic
	default:
		return c.NeedsRAG
	}
}

// profileSummary renders level and subject only; verbose profile fields
// never reach the prompt.
func profileSummary(p *datatypes.Profile) string {
	switch {
	case p.Level != "" && p.Subject != "":
		return fmt.Sprintf("%s level, studying %s", p.Level, p.Subject)
	case p.Level != "":
		return p.Level + " level"
	case p.Subject != "":
		return "studying " + p.Subject
	default:
		return "no profile details"
	}
}

func preferenceSummary(p *datatypes.Preferences) string {
	parts := make([]string, 0, 3)
	if p.Style != "" {
		parts = append(parts, "style: "+p.Style)
	}
	if p.Detail != "" {
		parts = append(parts, "detail: "+p.Detail)
	}
	if p.Languages != "" {
		parts = append(parts, "languages: "+p.Languages)
	}
	return strings.Join(parts, "; ")
}

// materialsBlock renders the numbered excerpt list: index, name, score,
// truncated text.
func materialsBlock(excerpts []datatypes.MaterialExcerpt) string {
	var b strings.Builder
	for i, ex := range excerpts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s (relevance %.2f)\n%s", i+1, ex.Name, ex.Score, ex.Excerpt)
	}
	return b.String()
}

// windowHistory keeps the newest n turns in chronological order.
func windowHistory(history []datatypes.ConversationTurn, n int) []datatypes.ConversationTurn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func historySize(history []datatypes.ConversationTurn) int {
	size := 0
	for _, turn := range history {
		size += len(turn.Text)
	}
	return size
}
