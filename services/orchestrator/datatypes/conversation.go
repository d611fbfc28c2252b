// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// =============================================================================
// Conversation Turns
// =============================================================================

// ConversationTurn is one message in a session's append-only turn log.
//
// # Description
//
// Turns are owned by the conversation store and are never mutated after
// creation. Within a session they are strictly ordered: CreatedAt is
// monotonic and Seq breaks ties for turns appended in the same clock tick.
type ConversationTurn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Seq       int64     `json:"seq"`
}

// =============================================================================
// Profile and Preferences
// =============================================================================

// Profile is the academic profile consumed by the context assembler.
// Only the routing-relevant fields are carried; verbose profile data stays
// with the profile subsystem.
type Profile struct {
	UserID  string `json:"user_id"`
	Level   string `json:"level"`
	Subject string `json:"subject"`
}

// Preferences captures how the user wants material explained. Included in
// the system segment only when the turn is study-related.
type Preferences struct {
	Style     string `json:"style,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Languages string `json:"languages,omitempty"`
}

// Empty reports whether the preferences carry no usable content.
func (p Preferences) Empty() bool {
	return p.Style == "" && p.Detail == "" && p.Languages == ""
}
