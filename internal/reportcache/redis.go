package reportcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"ar-io-observer/report"
)

const redisKeyPrefix = "ar-io-observer:report:"

// RedisCache shares the current report between observer replicas.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, r *report.ObserverReport, ttl time.Duration) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return c.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (*report.ObserverReport, bool, error) {
	payload, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var r report.ObserverReport
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, false, errors.Wrap(err, "decoding cached report")
	}
	return &r, true, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
