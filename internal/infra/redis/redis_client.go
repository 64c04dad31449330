package redis

import (
	"context"
	"time"

	"counseling-platform/internal/config"

	"github.com/go-redis/redis/v8"
)

// RedisClient is the narrow slice of redis this service issues: counter bumps
// with expiry for the per-sender message rate limiter, and string get/set/del
// for the chat snapshot cache.
type RedisClient interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Close() error
}

var _ RedisClient = (*goRedisClient)(nil)

type goRedisClient struct {
	cli *redis.Client
}

// NewClient connects and verifies the connection before returning.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*goRedisClient, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &goRedisClient{cli: cli}, nil
}

func (c *goRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}

func (c *goRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.cli.Expire(ctx, key, expiration).Err()
}

func (c *goRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

func (c *goRedisClient) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *goRedisClient) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *goRedisClient) Close() error { return c.cli.Close() }
