package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pharmadepot/storefront/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// ProductCache is the read-through cache in front of the catalog store.
type ProductCache interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Set(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, productID string) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (c *RedisCache) Get(ctx context.Context, productID string) (*domain.Product, error) {
	data, err := c.client.Get(ctx, cacheKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal cached product: %w", err)
	}

	return &p, nil
}

func (c *RedisCache) Set(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	// jitter so a catalog import doesn't expire the whole cache at once
	ttl := c.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	if err := c.client.Set(ctx, cacheKey(product.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, productID string) error {
	if err := c.client.Del(ctx, cacheKey(productID)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func cacheKey(productID string) string {
	return "product:" + productID
}
