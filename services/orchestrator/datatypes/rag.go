// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "sort"

// =============================================================================
// Material Excerpts
// =============================================================================

// MaterialExcerpt is one retrieved snippet of course material.
//
// # Description
//
// Constructed by the retrieval service from a similarity-search hit and
// consumed by the context assembler, which renders it into the numbered
// materials block of the system segment. Excerpt text is already truncated
// to the configured bound when the value is created.
//
// # Fields
//
//   - SourceID: stable identifier of the source material object.
//   - Name: display name shown to the model (file name or title).
//   - Excerpt: snippet text, truncated to the configured maximum length.
//   - Score: similarity score in [0, 1], higher is more relevant.
//   - Kind: source kind tag ("pdf", "notes", "slide", ...). Informational.
type MaterialExcerpt struct {
	SourceID string  `json:"source_id"`
	Name     string  `json:"name"`
	Excerpt  string  `json:"excerpt"`
	Score    float64 `json:"score"`
	Kind     string  `json:"kind,omitempty"`
}

// SortExcerptsByScore orders excerpts descending by similarity score.
// The sort is stable so equally-scored excerpts keep retrieval order.
func SortExcerptsByScore(excerpts []MaterialExcerpt) {
	sort.SliceStable(excerpts, func(i, j int) bool {
		return excerpts[i].Score > excerpts[j].Score
	})
}

// =============================================================================
// Assembled Context
// =============================================================================

// AssembledContext is the full bounded prompt sent to the generation
// backend: an ordered list of role-tagged segments plus the cumulative
// character size used for budget accounting.
//
// # Invariants
//
//   - Segments[0] is always the system segment.
//   - CharSize equals the sum of all segment content lengths and never
//     exceeds the assembler's configured budget.
type AssembledContext struct {
	Segments []Message
	CharSize int
}
