// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shaswata28/StudyMate-sub001/pkg/extensions"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/conversation"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/handlers"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/middleware"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/ratelimit"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/services"
)

// SetupRoutes registers the full HTTP surface.
//
// Health and metrics stay outside the /v1 group: probes and scrapers
// must not spend rate-limit budget or need identity.
func SetupRoutes(
	router *gin.Engine,
	pipeline *services.TutorPipeline,
	store conversation.Store,
	limiter *ratelimit.Limiter,
	opts extensions.ServiceOptions,
	logger *slog.Logger,
) {
	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.IdentityMiddleware(opts.AuthProvider))
	v1.Use(middleware.RateLimitMiddleware(limiter, logger))
	{
		v1.POST("/tutor/chat", handlers.HandleTutorChat(pipeline))

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:sessionId/history", handlers.HandleSessionHistory(store))
		}
	}
}
