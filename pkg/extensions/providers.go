// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

// ProfileProvider looks up a student's profile for prompt construction.
//
// Lookups are best effort: a provider failure or a missing profile both
// return (nil, nil) semantics at the call site, so implementations may
// return an error freely; the pipeline logs it and continues without a
// profile.
//
// Implementations must be safe for concurrent use.
type ProfileProvider interface {
	// Profile returns the student's profile or nil when none exists.
	Profile(ctx context.Context, userID string) (*datatypes.Profile, error)
}

// PreferenceProvider looks up stored learning preferences.
//
// Same best-effort contract as ProfileProvider.
type PreferenceProvider interface {
	// Preferences returns the student's preferences or nil when none
	// are stored.
	Preferences(ctx context.Context, userID string) (*datatypes.Preferences, error)
}

// =============================================================================
// No-op Defaults
// =============================================================================

// NopProfileProvider reports no profile for every user.
type NopProfileProvider struct{}

var _ ProfileProvider = (*NopProfileProvider)(nil)

func (p *NopProfileProvider) Profile(_ context.Context, _ string) (*datatypes.Profile, error) {
	return nil, nil
}

// NopPreferenceProvider reports no preferences for every user.
type NopPreferenceProvider struct{}

var _ PreferenceProvider = (*NopPreferenceProvider)(nil)

func (p *NopPreferenceProvider) Preferences(_ context.Context, _ string) (*datatypes.Preferences, error) {
	return nil, nil
}
