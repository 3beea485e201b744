package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	productKeyPrefix = "catalog:products:"
	creditKeyPrefix  = "credit:balance:"
)

// RedisCache implements CatalogCache and CreditCache over a redis client
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects a cache to the given redis instance
func NewRedisCache(addr string, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCache{client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetProducts(ctx context.Context, key string) (*ProductListing, bool, error) {
	val, err := c.client.Get(ctx, productKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var listing ProductListing
	if err := json.Unmarshal([]byte(val), &listing); err != nil {
		return nil, false, err
	}
	return &listing, true, nil
}

func (c *RedisCache) SetProducts(ctx context.Context, key string, listing *ProductListing, ttl time.Duration) error {
	if listing == nil {
		return nil
	}
	payload, err := json.Marshal(listing)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKeyPrefix+key, payload, ttl).Err()
}

func (c *RedisCache) InvalidateProducts(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, productKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *RedisCache) GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, creditKeyPrefix+customerID.String()).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, err
	}
	return balance, true, nil
}

func (c *RedisCache) SetBalance(ctx context.Context, customerID uuid.UUID, balance decimal.Decimal, ttl time.Duration) error {
	return c.client.Set(ctx, creditKeyPrefix+customerID.String(), balance.String(), ttl).Err()
}

func (c *RedisCache) InvalidateBalance(ctx context.Context, customerID uuid.UUID) error {
	return c.client.Del(ctx, creditKeyPrefix+customerID.String()).Err()
}
