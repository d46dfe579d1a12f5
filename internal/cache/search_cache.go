package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

const searchKeyPrefix = "embedding:search"

// SearchCache keeps ranked search results keyed by the current store
// generation. Invalidate bumps the generation so older entries are never read
// again and simply age out.
type SearchCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSearchCache(client *redisv9.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SearchCache{
		client: client,
		ttl:    ttl,
	}
}

// Get looks up fingerprint under the current generation and returns that
// generation. Pass it back to Set so a result computed before a write is never
// stored under the generation the write produced.
func (c *SearchCache) Get(ctx context.Context, fingerprint string, dest interface{}) (int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return 0, false, err
	}
	raw, err := c.client.Get(ctx, c.resultKey(gen, fingerprint)).Bytes()
	if err == redisv9.Nil {
		return gen, false, nil
	}
	if err != nil {
		return gen, false, fmt.Errorf("redis get search result failed: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return gen, false, fmt.Errorf("unmarshal cached search result failed: %w", err)
	}
	return gen, true, nil
}

func (c *SearchCache) Set(ctx context.Context, gen int64, fingerprint string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal search result failed: %w", err)
	}
	if err := c.client.Set(ctx, c.resultKey(gen, fingerprint), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set search result failed: %w", err)
	}
	return nil
}

func (c *SearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("redis bump search generation failed: %w", err)
	}
	return nil
}

func (c *SearchCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if err == redisv9.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get search generation failed: %w", err)
	}
	return gen, nil
}

func (c *SearchCache) generationKey() string {
	return searchKeyPrefix + ":gen"
}

func (c *SearchCache) resultKey(gen int64, fingerprint string) string {
	return fmt.Sprintf("%s:%d:%s", searchKeyPrefix, gen, fingerprint)
}
