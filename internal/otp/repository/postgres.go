package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"otp-gateway/internal/otp/domain"
)

const challengeColumns = `id, identity, purpose, code_hash, expires_at, attempts_count, is_used, used_reason, version, created_at, updated_at`

const (
	findActiveSQL = `SELECT ` + challengeColumns + ` FROM otp_challenges
WHERE identity = $1 AND purpose = $2 AND NOT is_used AND expires_at > $3
ORDER BY created_at DESC
LIMIT 1`

	countSinceSQL = `SELECT count(*) FROM otp_challenges
WHERE identity = $1 AND purpose = $2 AND created_at > $3`

	insertSQL = `INSERT INTO otp_challenges (` + challengeColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10)`

	updateSQL = `UPDATE otp_challenges
SET attempts_count = $1, is_used = $2, used_reason = $3, updated_at = $4, version = version + 1
WHERE id = $5 AND version = $6`

	existsSQL = `SELECT EXISTS (SELECT 1 FROM otp_challenges WHERE id = $1)`

	invalidateAllSQL = `UPDATE otp_challenges
SET is_used = TRUE, used_reason = $1, updated_at = $2, version = version + 1
WHERE identity = $3 AND purpose = $4 AND NOT is_used AND expires_at > $2`

	markExpiredSQL = `UPDATE otp_challenges
SET is_used = TRUE, used_reason = $1, updated_at = $2, version = version + 1
WHERE NOT is_used AND expires_at <= $2`

	purgeSQL = `DELETE FROM otp_challenges WHERE created_at < $1 AND expires_at <= $2`
)

// PostgresRepository stores challenges in the otp_challenges table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (*domain.Challenge, error) {
	var (
		c       domain.Challenge
		purpose string
		reason  string
	)
	if err := row.Scan(&c.ID, &c.Identity, &purpose, &c.CodeHash, &c.ExpiresAt, &c.AttemptsCount,
		&c.IsUsed, &reason, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Purpose = domain.Purpose(purpose)
	c.UsedReason = domain.UsedReason(reason)
	c.ExpiresAt = c.ExpiresAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// FindActive returns the newest live challenge for (identity, purpose), or nil if none.
func (r *PostgresRepository) FindActive(ctx context.Context, identity string, purpose domain.Purpose, now time.Time) (*domain.Challenge, error) {
	c, err := scanChallenge(r.db.QueryRowContext(ctx, findActiveSQL, identity, string(purpose), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// CountSince counts challenges for (identity, purpose) created after since.
func (r *PostgresRepository) CountSince(ctx context.Context, identity string, purpose domain.Purpose, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countSinceSQL, identity, string(purpose), since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Save inserts a new challenge (Version 0) or updates an existing one guarded by its version.
func (r *PostgresRepository) Save(ctx context.Context, c *domain.Challenge) error {
	if c.Version == 0 {
		_, err := r.db.ExecContext(ctx, insertSQL,
			c.ID, c.Identity, string(c.Purpose), c.CodeHash, c.ExpiresAt, c.AttemptsCount,
			c.IsUsed, string(c.UsedReason), c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return err
		}
		c.Version = 1
		return nil
	}
	res, err := r.db.ExecContext(ctx, updateSQL,
		c.AttemptsCount, c.IsUsed, string(c.UsedReason), c.UpdatedAt, c.ID, c.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, existsSQL, c.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	c.Version++
	return nil
}

// InvalidateAll marks every live challenge for (identity, purpose) as superseded in one statement.
func (r *PostgresRepository) InvalidateAll(ctx context.Context, identity string, purpose domain.Purpose, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, invalidateAllSQL, string(domain.UsedReasonSuperseded), now, identity, string(purpose))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOrMarkExpired marks expired unused challenges and deletes expired rows created before purgeBefore.
// Both statements run in one transaction.
func (r *PostgresRepository) DeleteOrMarkExpired(ctx context.Context, now, purgeBefore time.Time) (marked, deleted int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, purgeSQL, purgeBefore, now)
	if err != nil {
		return 0, 0, err
	}
	if deleted, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}
	res, err = tx.ExecContext(ctx, markExpiredSQL, string(domain.UsedReasonExpired), now)
	if err != nil {
		return 0, 0, err
	}
	if marked, err = res.RowsAffected(); err != nil {
		return 0, 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}
	return marked, deleted, nil
}

// Ping checks the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
