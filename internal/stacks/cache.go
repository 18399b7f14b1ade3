package stacks

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// StackCache is the read-through cache for generated stacks: Redis in front
// for fast reads with a calendar-aligned TTL, Postgres behind it as the
// durable tier. Fast-tier failures are logged and degrade to the durable
// tier; durable-tier failures propagate, there is no lower fallback.
type StackCache struct {
	db  DB
	rdb RedisClient
	now func() time.Time
}

func NewStackCache(db DB, rdb RedisClient) *StackCache {
	return &StackCache{
		db:  db,
		rdb: rdb,
		now: time.Now,
	}
}

func cacheKey(scope Scope, userID, periodKey string) string {
	return "stack:" + string(scope) + ":" + userID + ":" + periodKey
}

// Get returns the cached stacks for (scope, userID, periodKey). ok is false
// on a total miss; the caller then computes a fresh value and calls Put.
// A durable-tier hit repopulates the fast tier.
func (c *StackCache) Get(ctx context.Context, scope Scope, userID, periodKey string) ([]Stack, bool, error) {
	key := cacheKey(scope, userID, periodKey)

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			var stacks []Stack
			jerr := json.Unmarshal([]byte(data), &stacks)
			if jerr == nil {
				return stacks, true, nil
			}
			log.Printf("stacks-service: cache decode %s: %v", key, jerr)
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("stacks-service: cache get %s: %v", key, err)
		}
	}

	var payload []byte
	err := c.db.QueryRow(ctx, `
		SELECT payload FROM stack_cache
		WHERE user_id = $1 AND scope = $2 AND period_key = $3
	`, userID, string(scope), periodKey).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stacks []Stack
	if err := json.Unmarshal(payload, &stacks); err != nil {
		return nil, false, err
	}
	c.writeFast(ctx, key, scope, payload)
	return stacks, true, nil
}

// Put writes through both tiers. The durable row never expires and is
// overwritten unconditionally; the fast entry lives until the next period
// boundary.
func (c *StackCache) Put(ctx context.Context, scope Scope, userID, periodKey string, stacks []Stack) error {
	payload, err := json.Marshal(stacks)
	if err != nil {
		return err
	}
	if _, err := c.db.Exec(ctx, `
		INSERT INTO stack_cache (user_id, scope, period_key, payload, generated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, scope, period_key)
		DO UPDATE SET payload = EXCLUDED.payload, generated_at = now()
	`, userID, string(scope), periodKey, payload); err != nil {
		return err
	}
	c.writeFast(ctx, cacheKey(scope, userID, periodKey), scope, payload)
	return nil
}

// Invalidate drops the entry from both tiers.
func (c *StackCache) Invalidate(ctx context.Context, scope Scope, userID, periodKey string) error {
	if c.rdb != nil {
		key := cacheKey(scope, userID, periodKey)
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			log.Printf("stacks-service: cache del %s: %v", key, err)
		}
	}
	_, err := c.db.Exec(ctx, `
		DELETE FROM stack_cache
		WHERE user_id = $1 AND scope = $2 AND period_key = $3
	`, userID, string(scope), periodKey)
	return err
}

func (c *StackCache) writeFast(ctx context.Context, key string, scope Scope, payload []byte) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, payload, scope.ttl(c.now())).Err(); err != nil {
		log.Printf("stacks-service: cache set %s: %v", key, err)
	}
}
