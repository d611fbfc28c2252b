// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/observability"
)

// =============================================================================
// Session retention
// =============================================================================

// Expirer removes sessions whose newest activity predates a cutoff.
// MemoryStore satisfies this; stores that delegate retention to their
// backend (server-side TTL) simply do not implement it.
type Expirer interface {
	ExpireBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// RetentionConfig controls the background sweep.
type RetentionConfig struct {
	// TTL is how long an idle session is kept. Default: 24h.
	TTL time.Duration

	// Interval is the time between sweeps. Default: 1h.
	Interval time.Duration
}

// DefaultRetentionConfig returns the standard retention settings.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		TTL:      24 * time.Hour,
		Interval: time.Hour,
	}
}

// Sweeper periodically expires idle sessions from a store.
//
// # Description
//
// Sweeper runs one background goroutine that calls ExpireBefore on a
// fixed interval. Start and Stop are safe to call from any goroutine;
// starting an already running sweeper is an error, stopping a stopped
// one is a no-op.
type Sweeper struct {
	store  Expirer
	config RetentionConfig
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewSweeper creates a sweeper for the given store. Zero config fields
// take their defaults.
func NewSweeper(store Expirer, config RetentionConfig, logger *slog.Logger) *Sweeper {
	if config.TTL <= 0 {
		config.TTL = DefaultRetentionConfig().TTL
	}
	if config.Interval <= 0 {
		config.Interval = DefaultRetentionConfig().Interval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Start launches the sweep loop. It returns immediately; the loop runs
// until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("retention sweeper already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.runLoop(loopCtx)

	s.logger.Info("retention sweeper started",
		"ttl", s.config.TTL.String(),
		"interval", s.config.Interval.String())
	return nil
}

// Stop halts the loop and waits for the in-flight sweep, if any, to
// finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

// RunNow performs one sweep immediately, outside the schedule.
func (s *Sweeper) RunNow(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.config.TTL)
	removed, err := s.store.ExpireBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		observability.SessionsExpiredTotal.Add(float64(removed))
		s.logger.Info("expired idle sessions",
			"removed", removed,
			"cutoff", cutoff.Format(time.RFC3339))
	}
	return removed, nil
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunNow(ctx); err != nil {
				s.logger.Warn("retention sweep failed", "error", err)
			}
		}
	}
}
