package figma

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/xerrors"
)

// Cache keeps exported node images so repeated comparisons against the same
// design do not hit the export API's rate limits.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(ctx context.Context, c RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Errorf("failed to connect to redis at %s: %w", c.Addr, err)
	}

	return &RedisCache{
		client: client,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if xerrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, xerrors.Errorf("failed to get %s from redis: %w", key, err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return xerrors.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func cacheKey(fileKey string, nodeID string) string {
	return "figma:export:" + fileKey + ":" + nodeID
}
