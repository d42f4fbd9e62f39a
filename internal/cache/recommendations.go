// Package cache provides a Redis-backed read cache for recommendation queries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yonghwan1106/forest-welfare/internal/domain"
)

// RecommendationCache caches the top-N recommendation results per user.
// A cached slice may be longer than a later request needs; it is truncated
// on read. Requests for more entries than were cached fall through to the
// store.
type RecommendationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRecommendationCache constructs a cache with the given entry TTL.
func NewRecommendationCache(client *redis.Client, ttl time.Duration) *RecommendationCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RecommendationCache{client: client, ttl: ttl}
}

func key(userID string) string {
	return fmt.Sprintf("recommendations:top:%s", userID)
}

// Get returns the cached recommendations for the user, if present and large
// enough to satisfy n.
func (c *RecommendationCache) Get(ctx context.Context, userID string, n int) ([]domain.Recommendation, bool, error) {
	data, err := c.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var recs []domain.Recommendation
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, false, err
	}
	if len(recs) < n {
		return nil, false, nil
	}
	return recs[:n], true, nil
}

// Set stores the recommendation slice under the user's key.
func (c *RecommendationCache) Set(ctx context.Context, userID string, recs []domain.Recommendation) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(userID), data, c.ttl).Err()
}

// Invalidate drops the user's cached entry. Called after a new batch lands.
func (c *RecommendationCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, key(userID)).Err()
}
