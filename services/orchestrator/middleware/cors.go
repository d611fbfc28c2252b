// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware creates a middleware that answers cross-origin requests
// for an explicit origin allow-list.
//
// # Description
//
// When the request Origin matches an allowed origin exactly, the response
// carries Access-Control-Allow-Origin for that origin. Unknown origins
// get no CORS headers at all; the browser blocks them. Preflight OPTIONS
// requests are answered with 204 and never reach handlers.
//
// # Inputs
//
//   - allowedOrigins: exact origins, e.g. "http://localhost:3000".
//     An empty list disables CORS entirely.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-User-ID, X-Session-ID")
			// The chat handler echoes the session ID back; browsers
			// only surface it to scripts when it is exposed here.
			c.Header("Access-Control-Expose-Headers", "X-Session-ID, Retry-After")
			c.Header("Access-Control-Max-Age", "600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
