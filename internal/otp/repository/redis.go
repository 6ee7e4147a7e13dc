package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"otp-gateway/internal/otp/domain"
)

// DefaultRedisRetention is how long challenge keys live when no retention is configured.
const DefaultRedisRetention = 2 * time.Hour

const (
	redisPrefix      = "otp:"
	redisExpiryKey   = redisPrefix + "expiry"
	redisCreatedKey  = redisPrefix + "created"
	maxTxRetries     = 5
	redisNoMoreItems = -1
)

// RedisRepository keeps each challenge as a JSON value with a TTL and indexes it in sorted sets:
// one per (identity, purpose) scored by creation time, one global set of unused challenges
// scored by expiry, and one global set of all challenges scored by creation time.
type RedisRepository struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisRepository returns a challenge repository on client. Keys expire after retention,
// which must cover the rate-limit window; non-positive values use DefaultRedisRetention.
func NewRedisRepository(client *redis.Client, retention time.Duration) *RedisRepository {
	if retention <= 0 {
		retention = DefaultRedisRetention
	}
	return &RedisRepository{client: client, retention: retention}
}

type redisChallenge struct {
	ID            string    `json:"id"`
	Identity      string    `json:"identity"`
	Purpose       string    `json:"purpose"`
	CodeHash      string    `json:"code_hash"`
	ExpiresAt     time.Time `json:"expires_at"`
	AttemptsCount int       `json:"attempts_count"`
	IsUsed        bool      `json:"is_used"`
	UsedReason    string    `json:"used_reason,omitempty"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toRedis(c *domain.Challenge) redisChallenge {
	return redisChallenge{
		ID: c.ID, Identity: c.Identity, Purpose: string(c.Purpose), CodeHash: c.CodeHash,
		ExpiresAt: c.ExpiresAt.UTC(), AttemptsCount: c.AttemptsCount, IsUsed: c.IsUsed,
		UsedReason: string(c.UsedReason), Version: c.Version,
		CreatedAt: c.CreatedAt.UTC(), UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (rc redisChallenge) toDomain() *domain.Challenge {
	return &domain.Challenge{
		ID: rc.ID, Identity: rc.Identity, Purpose: domain.Purpose(rc.Purpose), CodeHash: rc.CodeHash,
		ExpiresAt: rc.ExpiresAt, AttemptsCount: rc.AttemptsCount, IsUsed: rc.IsUsed,
		UsedReason: domain.UsedReason(rc.UsedReason), Version: rc.Version,
		CreatedAt: rc.CreatedAt, UpdatedAt: rc.UpdatedAt,
	}
}

func challengeKey(id string) string {
	return redisPrefix + "challenge:" + id
}

func indexKey(identity string, purpose domain.Purpose) string {
	return redisPrefix + "idx:" + string(purpose) + ":" + identity
}

func score(t time.Time) float64 {
	return float64(t.UnixNano())
}

func scoreArg(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func decode(raw string) (*domain.Challenge, error) {
	var rc redisChallenge
	if err := json.Unmarshal([]byte(raw), &rc); err != nil {
		return nil, err
	}
	return rc.toDomain(), nil
}

func encode(c *domain.Challenge) ([]byte, error) {
	return json.Marshal(toRedis(c))
}

// FindActive returns the newest live challenge for (identity, purpose), or nil if none.
func (r *RedisRepository) FindActive(ctx context.Context, identity string, purpose domain.Purpose, now time.Time) (*domain.Challenge, error) {
	ids, err := r.client.ZRevRange(ctx, indexKey(identity, purpose), 0, redisNoMoreItems).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = challengeKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		c, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if c.Live(now) {
			return c, nil
		}
	}
	return nil, nil
}

// CountSince counts index entries for (identity, purpose) created after since.
func (r *RedisRepository) CountSince(ctx context.Context, identity string, purpose domain.Purpose, since time.Time) (int, error) {
	n, err := r.client.ZCount(ctx, indexKey(identity, purpose), "("+scoreArg(since), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Save inserts a new challenge (Version 0) or replaces an existing one under WATCH when the
// stored version matches.
func (r *RedisRepository) Save(ctx context.Context, c *domain.Challenge) error {
	if c.Version == 0 {
		return r.insert(ctx, c)
	}
	key := challengeKey(c.ID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		cur, err := decode(raw)
		if err != nil {
			return err
		}
		if cur.Version != c.Version {
			return ErrConflict
		}
		next := c.Clone()
		next.Version++
		return r.write(ctx, tx, next)
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	c.Version++
	return nil
}

func (r *RedisRepository) insert(ctx context.Context, c *domain.Challenge) error {
	next := c.Clone()
	next.Version = 1
	data, err := encode(next)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, challengeKey(c.ID), data, r.retention).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	idx := indexKey(c.Identity, c.Purpose)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, idx, redis.Z{Score: score(c.CreatedAt), Member: c.ID})
		pipe.Expire(ctx, idx, r.retention)
		pipe.ZAdd(ctx, redisCreatedKey, redis.Z{Score: score(c.CreatedAt), Member: c.ID})
		if !c.IsUsed {
			pipe.ZAdd(ctx, redisExpiryKey, redis.Z{Score: score(c.ExpiresAt), Member: c.ID})
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.Version = 1
	return nil
}

// write stores next inside a MULTI on tx, keeping the key's TTL.
func (r *RedisRepository) write(ctx context.Context, tx *redis.Tx, next *domain.Challenge) error {
	data, err := encode(next)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, challengeKey(next.ID), data, redis.KeepTTL)
		if next.IsUsed {
			pipe.ZRem(ctx, redisExpiryKey, next.ID)
		}
		return nil
	})
	return err
}

// mutate applies fn to the stored challenge under WATCH, retrying on concurrent writes.
// fn reports whether it changed the challenge. A missing key yields (false, nil).
func (r *RedisRepository) mutate(ctx context.Context, id string, fn func(c *domain.Challenge) bool) (bool, error) {
	key := challengeKey(id)
	for i := 0; i < maxTxRetries; i++ {
		changed := false
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			c, err := decode(raw)
			if err != nil {
				return err
			}
			if !fn(c) {
				return nil
			}
			c.Version++
			if err := r.write(ctx, tx, c); err != nil {
				return err
			}
			changed = true
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return changed, err
	}
	return false, ErrConflict
}

// InvalidateAll marks every live challenge for (identity, purpose) as superseded.
func (r *RedisRepository) InvalidateAll(ctx context.Context, identity string, purpose domain.Purpose, now time.Time) (int64, error) {
	ids, err := r.client.ZRange(ctx, indexKey(identity, purpose), 0, redisNoMoreItems).Result()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		changed, err := r.mutate(ctx, id, func(c *domain.Challenge) bool {
			if !c.Live(now) {
				return false
			}
			c.MarkUsed(domain.UsedReasonSuperseded, now)
			return true
		})
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	return n, nil
}

// DeleteOrMarkExpired marks unused challenges expired at or before now and deletes expired
// challenges created before purgeBefore along with their index entries.
func (r *RedisRepository) DeleteOrMarkExpired(ctx context.Context, now, purgeBefore time.Time) (int64, int64, error) {
	deleted, err := r.purge(ctx, now, purgeBefore)
	if err != nil {
		return 0, deleted, err
	}

	ids, err := r.client.ZRangeByScore(ctx, redisExpiryKey, &redis.ZRangeBy{Min: "-inf", Max: scoreArg(now)}).Result()
	if err != nil {
		return 0, deleted, err
	}
	var marked int64
	for _, id := range ids {
		changed, err := r.mutate(ctx, id, func(c *domain.Challenge) bool {
			if c.IsUsed || !c.Expired(now) {
				return false
			}
			c.MarkUsed(domain.UsedReasonExpired, now)
			return true
		})
		if err != nil {
			return marked, deleted, err
		}
		if changed {
			marked++
		} else if err := r.client.ZRem(ctx, redisExpiryKey, id).Err(); err != nil {
			return marked, deleted, err
		}
	}
	return marked, deleted, nil
}

func (r *RedisRepository) purge(ctx context.Context, now, purgeBefore time.Time) (int64, error) {
	ids, err := r.client.ZRangeByScore(ctx, redisCreatedKey, &redis.ZRangeBy{Min: "-inf", Max: "(" + scoreArg(purgeBefore)}).Result()
	if err != nil {
		return 0, err
	}
	var deleted int64
	for _, id := range ids {
		raw, err := r.client.Get(ctx, challengeKey(id)).Result()
		if errors.Is(err, redis.Nil) {
			if err := r.client.ZRem(ctx, redisCreatedKey, id).Err(); err != nil {
				return deleted, err
			}
			continue
		}
		if err != nil {
			return deleted, err
		}
		c, err := decode(raw)
		if err != nil {
			return deleted, err
		}
		if !c.Expired(now) {
			continue
		}
		var del *redis.IntCmd
		_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			del = pipe.Del(ctx, challengeKey(id))
			pipe.ZRem(ctx, indexKey(c.Identity, c.Purpose), id)
			pipe.ZRem(ctx, redisCreatedKey, id)
			pipe.ZRem(ctx, redisExpiryKey, id)
			return nil
		})
		if err != nil {
			return deleted, err
		}
		if del.Val() > 0 {
			deleted++
		}
	}
	return deleted, nil
}

// Ping checks the Redis connection.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
