// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for hosted-deployment functionality.
//
// This package provides extension points that allow a hosted StudyMate
// deployment to add capabilities without modifying the core codebase.
// The open source version uses no-op defaults for all interfaces.
//
// # Design Philosophy
//
// The core orchestrator is a fully functional local utility that works
// with nothing but an LLM backend. Hosted features (real authentication,
// student profiles from an SIS, stored learning preferences) are
// implemented by providing concrete implementations of these interfaces
// and injecting them via ServiceOptions.
//
// # Extension Categories
//
//   - auth.go: Authentication (AuthProvider)
//   - providers.go: Student profile and preference lookup
//     (ProfileProvider, PreferenceProvider)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
// Multiple goroutines may call methods simultaneously.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to service constructors. All fields are optional; nil values
// are replaced with no-op defaults when DefaultOptions() is called or
// when services check for nil.
//
// Example:
//
//	// Local install: use defaults
//	opts := extensions.DefaultOptions()
//
//	// Hosted: inject implementations
//	opts := extensions.ServiceOptions{
//	    AuthProvider:       oidcProvider,
//	    ProfileProvider:    sisProfiles,
//	    PreferenceProvider: storedPreferences,
//	}
type ServiceOptions struct {
	// AuthProvider validates authentication tokens.
	// Default: NopAuthProvider (always returns a valid local user).
	AuthProvider AuthProvider

	// ProfileProvider looks up the student's level and subject.
	// Default: NopProfileProvider (no profile; prompts omit it).
	ProfileProvider ProfileProvider

	// PreferenceProvider looks up stored learning preferences.
	// Default: NopPreferenceProvider (no preferences; prompts omit them).
	PreferenceProvider PreferenceProvider
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by a local install: every request is
// local-user, with no profile and no preferences.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:       &NopAuthProvider{},
		ProfileProvider:    &NopProfileProvider{},
		PreferenceProvider: &NopPreferenceProvider{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithProfiles returns a copy of opts with the given ProfileProvider.
func (opts ServiceOptions) WithProfiles(provider ProfileProvider) ServiceOptions {
	opts.ProfileProvider = provider
	return opts
}

// WithPreferences returns a copy of opts with the given PreferenceProvider.
func (opts ServiceOptions) WithPreferences(provider PreferenceProvider) ServiceOptions {
	opts.PreferenceProvider = provider
	return opts
}
