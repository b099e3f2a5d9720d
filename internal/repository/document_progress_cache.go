package repository

import (
	"context"
	"fmt"
	"learnhub_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

// DocumentProgressCache Redis 镜像，沿用旧版浏览器端的
// course-progress-documents-<courseId> 键名，并按用户隔离。视频使用同样的规则。
type DocumentProgressCache struct {
	Redis *redis.Client
}

func NewDocumentProgressCache(rdb *redis.Client) *DocumentProgressCache {
	return &DocumentProgressCache{Redis: rdb}
}

func ProgressCacheKey(userID uint, courseID string, kind model.ContentKind) string {
	return fmt.Sprintf("learnhub:user:%d:course-progress-%ss-%s", userID, kind, courseID)
}

func (c *DocumentProgressCache) Completed(ctx context.Context, userID uint, courseID string, kind model.ContentKind) ([]string, error) {
	members, err := c.Redis.SMembers(ctx, ProgressCacheKey(userID, courseID, kind)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return members, err
}

func (c *DocumentProgressCache) SetCompleted(ctx context.Context, userID uint, courseID, itemID string, kind model.ContentKind, completed bool) error {
	key := ProgressCacheKey(userID, courseID, kind)
	if completed {
		return c.Redis.SAdd(ctx, key, itemID).Err()
	}
	return c.Redis.SRem(ctx, key, itemID).Err()
}
