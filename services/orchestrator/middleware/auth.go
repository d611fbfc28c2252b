// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// It contains middleware for identity resolution, CORS, and per-user rate
// limiting. Identity integrates with the extensions package so hosted
// deployments can plug in real authentication.
//
// # Identity Flow
//
//	Request
//	   │
//	   ▼
//	IdentityMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   └─► Store AuthInfo in context
//	           │
//	           ▼
//	       RateLimitMiddleware (keys the window by user)
//	           │
//	           ▼
//	       Handler (retrieves via GetAuthInfo)
//
// With the default NopAuthProvider every request resolves to "local-user",
// which lets a single-student install run with no auth infrastructure.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shaswata28/StudyMate-sub001/pkg/extensions"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

// =============================================================================
// Context Keys
// =============================================================================

// authInfoKey is the context key for storing AuthInfo.
// Using a dedicated key prevents collisions with other context values.
const authInfoKey = "studymate_auth_info"

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the resolved user info in the Gin context.
//
// # Description
//
// Called by IdentityMiddleware after token validation. The stored
// AuthInfo can be retrieved by downstream middleware and handlers via
// GetAuthInfo.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the resolved user info from the Gin context.
//
// Returns nil if no AuthInfo is present or the stored value has the
// wrong type.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// =============================================================================
// Identity Middleware
// =============================================================================

// IdentityMiddleware creates a Gin middleware that resolves the caller's
// identity.
//
// # Description
//
// Extracts the bearer token from the Authorization header, validates it
// using the provided AuthProvider, and stores the resulting AuthInfo in
// the context. A missing or malformed header passes an empty token to
// Validate; the NopAuthProvider accepts this and returns local-user,
// while hosted providers reject it.
//
// # Inputs
//
//   - provider: AuthProvider to validate tokens. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with Gin.
func IdentityMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))

		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, datatypes.ErrorResponse{
				Error: "invalid or missing credentials",
				Code:  datatypes.CodeBadRequest,
			})
			return
		}

		SetAuthInfo(c, info)
		c.Next()
	}
}

// extractBearerToken pulls the token out of an Authorization header
// value. Returns empty string for anything that is not a Bearer scheme.
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Identity returns the rate-limit key for the current request: the
// resolved user ID when identity is present, otherwise an explicit
// X-User-ID header, otherwise the client IP.
func Identity(c *gin.Context) string {
	if info := GetAuthInfo(c); info != nil && info.UserID != "" {
		return info.UserID
	}
	if userID := c.GetHeader("X-User-ID"); userID != "" {
		return userID
	}
	return c.ClientIP()
}
