// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation keeps per-session dialogue history.
//
// Two implementations exist: MemoryStore for single-instance deployments
// and WeaviateStore for persistent, searchable history. Both serialize
// appends per session only; operations on distinct sessions never
// contend with each other.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
)

// Store records and replays conversation turns per session.
type Store interface {
	// Append records one turn at the end of the session's log.
	Append(ctx context.Context, sessionID string, role, text string) error

	// Tail returns the newest n turns in chronological order (oldest of
	// the n first). An unknown session yields an empty slice, not an
	// error.
	Tail(ctx context.Context, sessionID string, n int) ([]datatypes.ConversationTurn, error)
}

// =============================================================================
// MemoryStore
// =============================================================================

// sessionLog is one session's turn sequence with its own lock. dead is
// set under mu when the retention sweep removes the session; a writer
// that finds it must abandon this log and re-enter the map.
type sessionLog struct {
	mu    sync.Mutex
	turns []datatypes.ConversationTurn
	seq   int64
	dead  bool
}

// MemoryStore is an in-process Store. Sessions live in a sync.Map; each
// session carries its own mutex, so concurrent requests for different
// sessions proceed without shared locking.
type MemoryStore struct {
	sessions sync.Map // sessionID -> *sessionLog
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append records one turn. Ordering within a session is the order Append
// calls acquire the session lock; a monotonic sequence number breaks
// timestamp ties.
func (s *MemoryStore) Append(_ context.Context, sessionID string, role, text string) error {
	for {
		logAny, _ := s.sessions.LoadOrStore(sessionID, &sessionLog{})
		log := logAny.(*sessionLog)

		log.mu.Lock()
		if log.dead {
			// Lost a race with the retention sweep; the key is
			// already gone, so re-enter with a fresh log.
			log.mu.Unlock()
			continue
		}

		log.seq++
		log.turns = append(log.turns, datatypes.ConversationTurn{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      role,
			Text:      text,
			CreatedAt: time.Now().UTC(),
			Seq:       log.seq,
		})
		log.mu.Unlock()
		return nil
	}
}

// ExpireBefore removes every session whose newest turn predates cutoff
// and returns the number of sessions dropped. Sessions touched at or
// after the cutoff are untouched, whatever their age otherwise.
func (s *MemoryStore) ExpireBefore(_ context.Context, cutoff time.Time) (int, error) {
	removed := 0
	s.sessions.Range(func(key, value any) bool {
		log := value.(*sessionLog)

		// Staleness check, dead mark, and key delete all happen under
		// the log's lock, so an Append racing this sweep either lands
		// its turn first (making the log fresh) or observes dead and
		// re-enters the map after the key is gone.
		log.mu.Lock()
		stale := len(log.turns) == 0 ||
			log.turns[len(log.turns)-1].CreatedAt.Before(cutoff)
		if stale {
			log.dead = true
			s.sessions.Delete(key)
			removed++
		}
		log.mu.Unlock()
		return true
	})
	return removed, nil
}

// Tail returns a copy of the newest n turns in chronological order.
func (s *MemoryStore) Tail(_ context.Context, sessionID string, n int) ([]datatypes.ConversationTurn, error) {
	if n <= 0 {
		return []datatypes.ConversationTurn{}, nil
	}

	logAny, ok := s.sessions.Load(sessionID)
	if !ok {
		return []datatypes.ConversationTurn{}, nil
	}
	log := logAny.(*sessionLog)

	log.mu.Lock()
	defer log.mu.Unlock()

	if log.dead {
		return []datatypes.ConversationTurn{}, nil
	}

	start := 0
	if len(log.turns) > n {
		start = len(log.turns) - n
	}
	out := make([]datatypes.ConversationTurn, len(log.turns)-start)
	copy(out, log.turns[start:])
	return out, nil
}
