// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "fmt"

// =============================================================================
// Intent
// =============================================================================

// Intent is the routing category assigned to a user query.
//
// # Description
//
// Intent is a closed enum: every query resolves to exactly one of the five
// cases below, and both the Safety Gate and the Context Assembler switch
// over it exhaustively. Adding an intent is a compile-time-visible change
// everywhere it matters.
type Intent string

const (
	// IntentAcademic is a subject-matter question that benefits from
	// course material retrieval.
	IntentAcademic Intent = "academic"

	// IntentChat is casual conversation with no study content.
	IntentChat Intent = "chat"

	// IntentDebug is a request to find or fix a mistake in the user's
	// own work.
	IntentDebug Intent = "debug"

	// IntentFollowup continues the immediately preceding exchange and
	// depends on conversation history.
	IntentFollowup Intent = "followup"

	// IntentSafety marks a query the assistant must refuse.
	IntentSafety Intent = "safety"
)

// ParseIntent converts a raw string into an Intent.
//
// Anything outside the closed set is an error; callers fall back to the
// safe default classification rather than guessing.
func ParseIntent(s string) (Intent, error) {
	switch Intent(s) {
	case IntentAcademic, IntentChat, IntentDebug, IntentFollowup, IntentSafety:
		return Intent(s), nil
	default:
		return "", fmt.Errorf("unknown intent %q", s)
	}
}

// Valid reports whether the intent is one of the five closed cases.
func (i Intent) Valid() bool {
	_, err := ParseIntent(string(i))
	return err == nil
}

// =============================================================================
// Classification
// =============================================================================

// Classification is the routing decision for one query.
//
// # Description
//
// Produced by the intent classifier and consumed by the safety gate,
// retrieval service and context assembler. Constructed fresh per request and
// never shared across requests.
//
// # Invariants
//
//   - Intent is always one of the five closed cases, even when the
//     classifier backend fails (SafeDefaultClassification).
//   - Confidence is in [0, 1]; 0 means the value was not produced by the
//     model (fallback path).
type Classification struct {
	Intent       Intent  `json:"intent"`
	NeedsRAG     bool    `json:"needs_rag"`
	NeedsHistory bool    `json:"needs_history"`
	Confidence   float64 `json:"confidence"`
}

// SafeDefaultClassification returns the fallback used when the classifier
// backend fails, times out, or produces unparseable output.
//
// The default is deliberately the most context-hungry path (academic, with
// retrieval and history) so classification failures degrade toward
// over-contextualization, never toward silence or harm.
func SafeDefaultClassification() Classification {
	return Classification{
		Intent:       IntentAcademic,
		NeedsRAG:     true,
		NeedsHistory: true,
		Confidence:   0,
	}
}
