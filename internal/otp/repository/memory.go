package repository

import (
	"context"
	"sync"
	"time"

	"otp-gateway/internal/otp/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
// All reads return copies; callers never share state with the store.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[string]*domain.Challenge
}

// NewMemoryRepository returns an empty in-memory challenge repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*domain.Challenge)}
}

// FindActive returns the newest live challenge for (identity, purpose), or nil.
func (r *MemoryRepository) FindActive(ctx context.Context, identity string, purpose domain.Purpose, now time.Time) (*domain.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.Challenge
	for _, c := range r.m {
		if c.Identity != identity || c.Purpose != purpose || !c.Live(now) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return latest.Clone(), nil
}

// CountSince counts challenges for (identity, purpose) created after since.
func (r *MemoryRepository) CountSince(ctx context.Context, identity string, purpose domain.Purpose, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.m {
		if c.Identity == identity && c.Purpose == purpose && c.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

// Save inserts or version-checked updates c.
func (r *MemoryRepository) Save(ctx context.Context, c *domain.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Version == 0 {
		if _, exists := r.m[c.ID]; exists {
			return ErrConflict
		}
		c.Version = 1
		r.m[c.ID] = c.Clone()
		return nil
	}
	cur, ok := r.m[c.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != c.Version {
		return ErrConflict
	}
	c.Version++
	r.m[c.ID] = c.Clone()
	return nil
}

// InvalidateAll marks live challenges for (identity, purpose) as superseded.
func (r *MemoryRepository) InvalidateAll(ctx context.Context, identity string, purpose domain.Purpose, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.m {
		if c.Identity == identity && c.Purpose == purpose && c.Live(now) {
			c.MarkUsed(domain.UsedReasonSuperseded, now)
			c.Version++
			n++
		}
	}
	return n, nil
}

// DeleteOrMarkExpired marks expired unused challenges and purges old rows.
func (r *MemoryRepository) DeleteOrMarkExpired(ctx context.Context, now, purgeBefore time.Time) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var marked, deleted int64
	for id, c := range r.m {
		if c.CreatedAt.Before(purgeBefore) && c.Expired(now) {
			delete(r.m, id)
			deleted++
			continue
		}
		if !c.IsUsed && c.Expired(now) {
			c.MarkUsed(domain.UsedReasonExpired, now)
			c.Version++
			marked++
		}
	}
	return marked, deleted, nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Get returns a copy of the challenge with id, or nil. Used by tests and the dev tooling.
func (r *MemoryRepository) Get(id string) *domain.Challenge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m[id].Clone()
}

// Len returns the number of stored challenges.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
