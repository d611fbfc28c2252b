// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package safety short-circuits generation for queries classified as
// unsafe. The gate runs before any retrieval or generation call so the
// cost of abuse is bounded to one cheap classification.
package safety

import (
	"log/slog"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

// RefusalMessage is the fixed text returned for blocked queries. It never
// varies with the offending content.
const RefusalMessage = "I can't help with that. If you're working on " +
	"coursework, I'm happy to explain the underlying concepts instead."

// Verdict is the gate's decision for one classification.
type Verdict struct {
	Blocked bool
	Message string
}

// Check inspects a classification and decides whether the turn may
// proceed to retrieval and generation.
//
// # Description
//
// Pure function with an exhaustive switch over the closed intent set.
// Only the offending category tag is logged, never the content.
func Check(classification datatypes.Classification) Verdict {
	switch classification.Intent {
	case datatypes.IntentSafety:
		slog.Warn("Blocked query at safety gate", "category", classification.Intent)
		return Verdict{Blocked: true, Message: RefusalMessage}
	case datatypes.IntentAcademic, datatypes.IntentChat, datatypes.IntentDebug, datatypes.IntentFollowup:
		return Verdict{}
	default:
		// Unreachable for classifications built through ParseIntent or
		// SafeDefaultClassification; treat anything else as unsafe.
		slog.Warn("Blocked query with unrecognized intent", "category", classification.Intent)
		return Verdict{Blocked: true, Message: RefusalMessage}
	}
}
