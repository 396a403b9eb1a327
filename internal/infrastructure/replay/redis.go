package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "redemption:nonce:"

// RedisCache Redisによるnonce消費キャッシュ（SET NX PX）
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache 新しいRedisCacheを作成
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client, prefix: defaultKeyPrefix}
}

// NewRedisClient 接続設定からRedisクライアントを作成し、疎通を確認する
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// MarkConsumed nonceが未登録の場合のみ登録し、登録できたかを返す
func (c *RedisCache) MarkConsumed(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	ok, err := c.client.SetNX(ctx, c.prefix+nonce, time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark nonce consumed: %w", err)
	}
	return ok, nil
}

// IsConsumed nonceが消費済みかを返す
func (c *RedisCache) IsConsumed(ctx context.Context, nonce string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+nonce).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check nonce: %w", err)
	}
	return n > 0, nil
}
