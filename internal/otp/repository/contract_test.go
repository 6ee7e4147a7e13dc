package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"otp-gateway/internal/otp/domain"
)

// testRepository runs the behaviour every Repository implementation must share.
// newRepo must return an empty store.
func testRepository(t *testing.T, newRepo func(t *testing.T) Repository) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	const phone = "+15550000"

	newChallenge := func(identity string, purpose domain.Purpose, createdAt time.Time, ttl time.Duration) *domain.Challenge {
		return &domain.Challenge{
			ID:        uuid.NewString(),
			Identity:  identity,
			Purpose:   purpose,
			CodeHash:  "0000000000000000000000000000000000000000000000000000000000000000",
			ExpiresAt: createdAt.Add(ttl),
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
	}
	mustSave := func(t *testing.T, r Repository, c *domain.Challenge) {
		t.Helper()
		if err := r.Save(context.Background(), c); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	t.Run("FindActive empty", func(t *testing.T) {
		r := newRepo(t)
		got, err := r.FindActive(context.Background(), phone, domain.PurposeLogin, base)
		if err != nil {
			t.Fatalf("FindActive: %v", err)
		}
		if got != nil {
			t.Errorf("FindActive = %+v, want nil", got)
		}
	})

	t.Run("Save insert sets version", func(t *testing.T) {
		r := newRepo(t)
		c := newChallenge(phone, domain.PurposeLogin, base, 5*time.Minute)
		mustSave(t, r, c)
		if c.Version != 1 {
			t.Errorf("Version = %d, want 1", c.Version)
		}
		got, err := r.FindActive(context.Background(), phone, domain.PurposeLogin, base.Add(time.Minute))
		if err != nil {
			t.Fatalf("FindActive: %v", err)
		}
		if got == nil || got.ID != c.ID {
			t.Fatalf("FindActive = %+v, want %s", got, c.ID)
		}
		if got.CodeHash != c.CodeHash || got.Version != 1 || !got.ExpiresAt.Equal(c.ExpiresAt) {
			t.Errorf("FindActive = %+v, want fields of %+v", got, c)
		}
	})

	t.Run("FindActive returns most recent", func(t *testing.T) {
		r := newRepo(t)
		older := newChallenge(phone, domain.PurposeLogin, base, 5*time.Minute)
		newer := newChallenge(phone, domain.PurposeLogin, base.Add(time.Second), 5*time.Minute)
		mustSave(t, r, newer)
		mustSave(t, r, older)
		got, err := r.FindActive(context.Background(), phone, domain.PurposeLogin, base.Add(2*time.Second))
		if err != nil {
			t.Fatalf("FindActive: %v", err)
		}
		if got == nil || got.ID != newer.ID {
			t.Errorf("FindActive = %v, want newer challenge %s", got, newer.ID)
		}
	})

	t.Run("FindActive skips used expired and other keys", func(t *testing.T) {
		r := newRepo(t)
		used := newChallenge(phone, domain.PurposeLogin, base.Add(3*time.Second), 5*time.Minute)
		used.MarkUsed(domain.UsedReasonVerified, base)
		expired := newChallenge(phone, domain.PurposeLogin, base.Add(-10*time.Minute), 5*time.Minute)
		other := newChallenge(phone, domain.PurposeRegistration, base.Add(4*time.Second), 5*time.Minute)
		for _, c := range []*domain.Challenge{used, expired, other} {
			mustSave(t, r, c)
		}
		got, err := r.FindActive(context.Background(), phone, domain.PurposeLogin, base.Add(5*time.Second))
		if err != nil {
			t.Fatalf("FindActive: %v", err)
		}
		if got != nil {
			t.Errorf("FindActive = %+v, want nil", got)
		}
	})

	t.Run("CountSince", func(t *testing.T) {
		r := newRepo(t)
		for i := 0; i < 3; i++ {
			c := newChallenge(phone, domain.PurposeLogin, base.Add(time.Duration(i)*10*time.Minute), 5*time.Minute)
			if i == 0 {
				c.MarkUsed(domain.UsedReasonSuperseded, base)
			}
			mustSave(t, r, c)
		}
		mustSave(t, r, newChallenge("+15559999", domain.PurposeLogin, base, 5*time.Minute))

		testCases := []struct {
			since time.Time
			want  int
		}{
			{base.Add(-time.Hour), 3},
			{base, 2},
			{base.Add(5 * time.Minute), 2},
			{base.Add(20 * time.Minute), 0},
		}
		for _, tc := range testCases {
			got, err := r.CountSince(context.Background(), phone, domain.PurposeLogin, tc.since)
			if err != nil {
				t.Fatalf("CountSince: %v", err)
			}
			if got != tc.want {
				t.Errorf("CountSince(%v) = %d, want %d", tc.since, got, tc.want)
			}
		}
	})

	t.Run("Save update is version checked", func(t *testing.T) {
		r := newRepo(t)
		c := newChallenge(phone, domain.PurposeLogin, base, 5*time.Minute)
		mustSave(t, r, c)

		stale := c.Clone()
		c.RecordAttempt(base.Add(time.Second))
		mustSave(t, r, c)
		if c.Version != 2 {
			t.Errorf("Version = %d, want 2", c.Version)
		}

		stale.MarkUsed(domain.UsedReasonVerified, base.Add(time.Second))
		if err := r.Save(context.Background(), stale); !errors.Is(err, ErrConflict) {
			t.Fatalf("Save stale = %v, want ErrConflict", err)
		}
		got, err := r.FindActive(context.Background(), phone, domain.PurposeLogin, base.Add(2*time.Second))
		if err != nil {
			t.Fatalf("FindActive: %v", err)
		}
		if got == nil || got.AttemptsCount != 1 || got.IsUsed {
			t.Errorf("FindActive = %+v, want attempts 1 and unused", got)
		}
	})

	t.Run("Save update missing", func(t *testing.T) {
		r := newRepo(t)
		c := newChallenge(phone, domain.PurposeLogin, base, 5*time.Minute)
		c.Version = 3
		if err := r.Save(context.Background(), c); !errors.Is(err, ErrNotFound) {
			t.Errorf("Save = %v, want ErrNotFound", err)
		}
	})

	t.Run("InvalidateAll", func(t *testing.T) {
		r := newRepo(t)
		now := base.Add(time.Minute)
		a := newChallenge(phone, domain.PurposeLogin, base, 5*time.Minute)
		b := newChallenge(phone, domain.PurposeLogin, base.Add(time.Second), 5*time.Minute)
		other := newChallenge(phone, domain.PurposeRegistration, base, 5*time.Minute)
		for _, c := range []*domain.Challenge{a, b, other} {
			mustSave(t, r, c)
		}
		n, err := r.InvalidateAll(context.Background(), phone, domain.PurposeLogin, now)
		if err != nil {
			t.Fatalf("InvalidateAll: %v", err)
		}
		if n != 2 {
			t.Errorf("InvalidateAll = %d, want 2", n)
		}
		if got, _ := r.FindActive(context.Background(), phone, domain.PurposeLogin, now); got != nil {
			t.Errorf("FindActive after InvalidateAll = %+v, want nil", got)
		}
		if got, _ := r.FindActive(context.Background(), phone, domain.PurposeRegistration, now); got == nil {
			t.Error("InvalidateAll must not touch other purposes")
		}
		n, err = r.InvalidateAll(context.Background(), phone, domain.PurposeLogin, now)
		if err != nil || n != 0 {
			t.Errorf("second InvalidateAll = %d, %v; want 0, nil", n, err)
		}
		// A superseded challenge keeps its version history; stale writers must conflict.
		a.RecordAttempt(now)
		if err := r.Save(context.Background(), a); !errors.Is(err, ErrConflict) {
			t.Errorf("Save after InvalidateAll = %v, want ErrConflict", err)
		}
	})

	t.Run("DeleteOrMarkExpired is idempotent", func(t *testing.T) {
		r := newRepo(t)
		now := base.Add(2 * time.Hour)
		purgeBefore := now.Add(-time.Hour)
		old := newChallenge(phone, domain.PurposeLogin, base, 5*time.Minute)
		recentExpired := newChallenge(phone, domain.PurposeLogin, now.Add(-10*time.Minute), 5*time.Minute)
		live := newChallenge(phone, domain.PurposeLogin, now.Add(-time.Minute), 5*time.Minute)
		for _, c := range []*domain.Challenge{old, recentExpired, live} {
			mustSave(t, r, c)
		}

		marked, deleted, err := r.DeleteOrMarkExpired(context.Background(), now, purgeBefore)
		if err != nil {
			t.Fatalf("DeleteOrMarkExpired: %v", err)
		}
		if marked != 1 || deleted != 1 {
			t.Errorf("DeleteOrMarkExpired = (%d, %d), want (1, 1)", marked, deleted)
		}
		marked, deleted, err = r.DeleteOrMarkExpired(context.Background(), now, purgeBefore)
		if err != nil {
			t.Fatalf("second DeleteOrMarkExpired: %v", err)
		}
		if marked != 0 || deleted != 0 {
			t.Errorf("second DeleteOrMarkExpired = (%d, %d), want (0, 0)", marked, deleted)
		}

		got, err := r.FindActive(context.Background(), phone, domain.PurposeLogin, now)
		if err != nil {
			t.Fatalf("FindActive: %v", err)
		}
		if got == nil || got.ID != live.ID {
			t.Errorf("FindActive = %v, want live challenge %s", got, live.ID)
		}
		n, err := r.CountSince(context.Background(), phone, domain.PurposeLogin, purgeBefore)
		if err != nil {
			t.Fatalf("CountSince: %v", err)
		}
		if n != 2 {
			t.Errorf("CountSince after sweep = %d, want 2", n)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := newRepo(t).Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}
