package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/forum-archive-api/internal/models"
	appErrors "github.com/noah-isme/forum-archive-api/pkg/errors"
)

// UserCacheRepository caches forum user id lookups in Redis.
type UserCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUserCacheRepository constructs the cache. A nil client turns every lookup into a miss.
func NewUserCacheRepository(client *redis.Client, ttl time.Duration) *UserCacheRepository {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &UserCacheRepository{client: client, ttl: ttl}
}

func userCacheKey(platform models.Platform, slug string) string {
	return fmt.Sprintf("archive:user:%s:%s", platform, slug)
}

// GetUserID returns the cached id or appErrors.ErrCacheMiss.
func (r *UserCacheRepository) GetUserID(ctx context.Context, platform models.Platform, slug string) (string, error) {
	if r.client == nil {
		return "", appErrors.ErrCacheMiss
	}
	key := userCacheKey(platform, slug)
	id, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return id, nil
}

// SetUserID stores the id with the configured TTL.
func (r *UserCacheRepository) SetUserID(ctx context.Context, platform models.Platform, slug, userID string) error {
	if r.client == nil {
		return nil
	}
	key := userCacheKey(platform, slug)
	if err := r.client.Set(ctx, key, userID, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
