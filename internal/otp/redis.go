package otp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"clinic-management-api/internal/model"
	"clinic-management-api/internal/store"
)

// incrLua only counts attempts against a challenge that still exists.
const incrLua = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`

// RedisStore keeps each challenge in a hash that expires with the code.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	incr   *redis.Script
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "clinic:otp:", incr: redis.NewScript(incrLua)}
}

func (r *RedisStore) key(email string, purpose model.Purpose) string {
	return r.prefix + string(purpose) + ":" + email
}

func (r *RedisStore) Save(ctx context.Context, c *model.Challenge) error {
	k := r.key(c.Email, c.Purpose)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k,
			"code_hash", c.CodeHash,
			"attempts", 0,
			"expires_at", c.ExpiresAt.UnixMilli(),
			"sent_at", c.SentAt.UnixMilli(),
		)
		p.PExpireAt(ctx, k, c.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, email string, purpose model.Purpose) (*model.Challenge, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key(email, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if len(vals) == 0 {
		return nil, store.ErrNotFound
	}

	attempts, _ := strconv.Atoi(vals["attempts"])
	expires, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("challenge expires_at: %w", err)
	}
	sent, _ := strconv.ParseInt(vals["sent_at"], 10, 64)

	return &model.Challenge{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  vals["code_hash"],
		Attempts:  attempts,
		ExpiresAt: time.UnixMilli(expires),
		SentAt:    time.UnixMilli(sent),
	}, nil
}

func (r *RedisStore) IncrementAttempts(ctx context.Context, email string, purpose model.Purpose) (int, error) {
	n, err := r.incr.Run(ctx, r.rdb, []string{r.key(email, purpose)}).Int()
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	if n < 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (r *RedisStore) Delete(ctx context.Context, email string, purpose model.Purpose) error {
	return r.rdb.Del(ctx, r.key(email, purpose)).Err()
}
