package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/cases"
)

// Source is the lookup surface the cache decorates.
type Source interface {
	ProductByID(ctx context.Context, id string) (Product, error)
	ProductByBarcode(ctx context.Context, barcode string) (Product, error)
	ProductBySerial(ctx context.Context, serial string) (Product, error)
	SearchProducts(ctx context.Context, text string, limit int) ([]Product, error)
}

const keyPrefix = "catalog:"

// Cache serves product lookups from Redis and falls back to the source on a
// miss. Redis errors are logged and bypassed.
type Cache struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache wraps source with a Redis read-through cache.
func NewCache(source Source, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{source: source, client: client, ttl: ttl, logger: logger}
}

// ProductByID returns a cached product.
func (c *Cache) ProductByID(ctx context.Context, id string) (Product, error) {
	var p Product
	err := c.fetchJSON(ctx, c.key("id", id), &p, func(ctx context.Context) (any, error) {
		return c.source.ProductByID(ctx, id)
	})
	return p, err
}

// ProductByBarcode returns a cached product.
func (c *Cache) ProductByBarcode(ctx context.Context, barcode string) (Product, error) {
	var p Product
	err := c.fetchJSON(ctx, c.key("barcode", barcode), &p, func(ctx context.Context) (any, error) {
		return c.source.ProductByBarcode(ctx, barcode)
	})
	return p, err
}

// ProductBySerial is not cached; serials move between stock items.
func (c *Cache) ProductBySerial(ctx context.Context, serial string) (Product, error) {
	return c.source.ProductBySerial(ctx, serial)
}

// SearchProducts caches result lists per folded search text.
func (c *Cache) SearchProducts(ctx context.Context, text string, limit int) ([]Product, error) {
	var out []Product
	err := c.fetchJSON(ctx, c.key("search", text)+":"+strconv.Itoa(limit), &out, func(ctx context.Context) (any, error) {
		return c.source.SearchProducts(ctx, text, limit)
	})
	return out, err
}

// Invalidate drops every cached catalog entry.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *Cache) key(kind, value string) string {
	// a Caser keeps state, so each key gets its own
	return keyPrefix + kind + ":" + cases.Fold().String(strings.TrimSpace(value))
}

func (c *Cache) fetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog cache read", slog.String("key", key), slog.Any("error", err))
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write", slog.String("key", key), slog.Any("error", err))
		}
	}
	return json.Unmarshal(raw, dest)
}
