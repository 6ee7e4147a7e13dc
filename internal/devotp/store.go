// Package devotp provides an in-memory capture of issued codes by challenge_id, used only when
// OTP_RETURN_TO_CLIENT is enabled outside production.
package devotp

import (
	"context"
	"sync"
	"time"

	"otp-gateway/internal/platform/clock"
)

// Store holds plain codes by challenge_id for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores code for challengeID until expiresAt.
	Put(ctx context.Context, challengeID, code string, expiresAt time.Time)
	// Get returns the code for challengeID if present and not expired.
	Get(ctx context.Context, challengeID string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu    sync.RWMutex
	m     map[string]entry
	clock clock.Clocker
}

// NewMemoryStore returns a new in-memory dev code store using the system clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(clock.New())
}

// NewMemoryStoreWithClock returns a store that judges expiry with c.
func NewMemoryStoreWithClock(c clock.Clocker) *MemoryStore {
	return &MemoryStore{
		m:     make(map[string]entry),
		clock: c,
	}
}

// Put stores code for challengeID until expiresAt. Entries already expired are dropped.
func (s *MemoryStore) Put(ctx context.Context, challengeID, code string, expiresAt time.Time) {
	if !expiresAt.After(s.clock.Now()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[challengeID] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for challengeID if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, challengeID string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[challengeID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.clock.Now()) {
		s.mu.Lock()
		delete(s.m, challengeID)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}

// Delete removes the entry for challengeID, if any.
func (s *MemoryStore) Delete(ctx context.Context, challengeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, challengeID)
}

// Purge drops every entry expired at or before now and returns how many were removed.
func (s *MemoryStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.m {
		if !e.expiresAt.After(now) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
