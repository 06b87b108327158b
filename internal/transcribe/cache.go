package transcribe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores finished transcripts in Redis keyed by source URL and
// language, so re-requesting the same lecture skips the whole
// fetch/transcribe pipeline.
type Cache struct {
	Rdb *redis.Client
	TTL time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{Rdb: rdb, TTL: ttl}
}

func cacheKey(url, language string) string {
	sum := sha256.Sum256([]byte(url + "|" + language))
	return "transcript:" + hex.EncodeToString(sum[:])
}

// Get returns a cached transcript and whether one was present.
func (c *Cache) Get(ctx context.Context, url, language string) (string, bool, error) {
	if c == nil || c.Rdb == nil {
		return "", false, nil
	}
	text, err := c.Rdb.Get(ctx, cacheKey(url, language)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Put stores a transcript with the configured TTL.
func (c *Cache) Put(ctx context.Context, url, language, text string) error {
	if c == nil || c.Rdb == nil {
		return nil
	}
	return c.Rdb.Set(ctx, cacheKey(url, language), text, c.TTL).Err()
}
