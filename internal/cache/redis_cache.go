package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/racmathafidz/POS-Invoice/internal/domain"
)

type RedisRevenueCache struct {
	client *redis.Client
}

func NewRedisRevenueCache(addr string, password string, db int) *RedisRevenueCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisRevenueCache{client: client}
}

func (c *RedisRevenueCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisRevenueCache) Close() error {
	return c.client.Close()
}

func (c *RedisRevenueCache) Get(ctx context.Context, key string) ([]domain.RevenuePoint, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var points []domain.RevenuePoint
	if err := json.Unmarshal([]byte(val), &points); err != nil {
		return nil, false, err
	}
	return points, true, nil
}

func (c *RedisRevenueCache) Set(ctx context.Context, key string, points []domain.RevenuePoint, ttl time.Duration) error {
	payload, err := json.Marshal(points)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
