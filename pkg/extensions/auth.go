// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when authentication fails. Hosted
// implementations should wrap this error with additional context.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// authentication.
//
// Required fields (always populated):
//   - UserID: unique identifier for the user
//
// Optional fields (may be empty):
//   - Email: user's email address
//   - Roles: role memberships ("student", "instructor", "admin")
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// This is the only required field and must never be empty.
	UserID string

	// Email is the user's email address.
	Email string

	// Roles contains role memberships for authorization decisions.
	Roles []string
}

// HasRole checks if the user has a specific role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Local Behavior
//
// The default NopAuthProvider always returns a valid "local-user". This
// lets a single-student install function without any authentication
// infrastructure.
//
// # Hosted Implementation
//
// Hosted versions validate tokens against identity providers (OIDC,
// school SSO) and return real user identity:
//
//	func (p *OIDCProvider) Validate(ctx context.Context, token string) (*AuthInfo, error) {
//	    claims, err := p.verifier.Verify(ctx, token)
//	    if err != nil {
//	        return nil, fmt.Errorf("token rejected: %w", extensions.ErrUnauthorized)
//	    }
//	    return &extensions.AuthInfo{UserID: claims.Subject, Email: claims.Email}, nil
//	}
type AuthProvider interface {
	// Validate checks if the token is valid and returns the user's
	// identity. Returns ErrUnauthorized (or wrapped) if invalid.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every request as a fixed local user.
type NopAuthProvider struct{}

var _ AuthProvider = (*NopAuthProvider)(nil)

// Validate always succeeds, ignoring the token entirely.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"student", "admin"},
	}, nil
}
