// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ratelimit enforces a per-user fixed-window request budget.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Default production budget: 15 requests per rolling 60 second window.
const (
	DefaultLimit  = 15
	DefaultPeriod = 60 * time.Second
)

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// RetryAfter is how long the caller should wait before retrying.
	// Always positive when Allowed is false.
	RetryAfter time.Duration

	// Remaining is the number of requests left in the current window.
	Remaining int64
}

// Limiter admits or rejects requests per identity key. Distinct identities
// never contend; the underlying store shards state per key.
type Limiter struct {
	inner  *limiter.Limiter
	limit  int64
	logger *slog.Logger
}

// Config controls the admission budget.
type Config struct {
	// Limit is the number of requests admitted per window. Zero or
	// negative means no requests are ever admitted.
	Limit int64

	// Period is the window length.
	Period time.Duration
}

// DefaultConfig returns the production budget.
func DefaultConfig() Config {
	return Config{Limit: DefaultLimit, Period: DefaultPeriod}
}

// New creates an in-process Limiter.
func New(config Config, logger *slog.Logger) *Limiter {
	if config.Period <= 0 {
		config.Period = DefaultPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	rate := limiter.Rate{Period: config.Period, Limit: config.Limit}
	return &Limiter{
		inner:  limiter.New(memory.NewStore(), rate),
		limit:  config.Limit,
		logger: logger,
	}
}

// Admit counts one request against the identity's window and decides.
//
// # Description
//
// The first Limit requests in a window are admitted; the next request is
// rejected with the time remaining until the window resets. A configured
// limit of zero rejects every request with a full-period retry hint.
//
// Store failures degrade open: the request is admitted with a warning,
// since losing one window of throttling is cheaper than refusing service.
func (l *Limiter) Admit(ctx context.Context, identity string) Decision {
	if l.limit <= 0 {
		return Decision{Allowed: false, RetryAfter: l.inner.Rate.Period}
	}

	lctx, err := l.inner.Get(ctx, identity)
	if err != nil {
		l.logger.Warn("Rate limit store failure, admitting request",
			"identity", identity,
			"error", err,
		)
		return Decision{Allowed: true, Remaining: 0}
	}

	if lctx.Reached {
		retryAfter := time.Until(time.Unix(lctx.Reset, 0))
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	return Decision{Allowed: true, Remaining: lctx.Remaining}
}
