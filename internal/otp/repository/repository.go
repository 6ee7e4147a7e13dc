package repository

import (
	"context"
	"errors"
	"time"

	"otp-gateway/internal/otp/domain"
)

// ErrConflict is returned by Save when the stored version no longer matches the challenge's Version.
var ErrConflict = errors.New("challenge was modified concurrently")

// ErrNotFound is returned by Save when updating a challenge that does not exist.
var ErrNotFound = errors.New("challenge not found")

// Repository defines persistence for OTP challenges.
type Repository interface {
	// FindActive returns the most recently created challenge for (identity, purpose) that is unused
	// and expires after now, or nil if none qualifies.
	FindActive(ctx context.Context, identity string, purpose domain.Purpose, now time.Time) (*domain.Challenge, error)
	// CountSince returns how many challenges for (identity, purpose) were created strictly after since.
	CountSince(ctx context.Context, identity string, purpose domain.Purpose, since time.Time) (int, error)
	// Save inserts c when c.Version is 0 and sets Version to 1. Otherwise it updates the row only if the
	// stored version equals c.Version, increments c.Version, and returns ErrConflict on mismatch.
	Save(ctx context.Context, c *domain.Challenge) error
	// InvalidateAll marks every live challenge for (identity, purpose) as superseded. Returns the number marked.
	InvalidateAll(ctx context.Context, identity string, purpose domain.Purpose, now time.Time) (int64, error)
	// DeleteOrMarkExpired marks unused challenges that expired at or before now as used (reason expired)
	// and deletes challenges created before purgeBefore. Returns (marked, deleted).
	DeleteOrMarkExpired(ctx context.Context, now, purgeBefore time.Time) (marked, deleted int64, err error)
	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}
