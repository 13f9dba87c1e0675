package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultCatalogKeyPrefix = "catalog:entry:"
	defaultCatalogTTL       = 10 * time.Minute
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// cachedEntry is the JSON shape stored in Redis
type cachedEntry struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    bool            `json:"active"`
}

// RedisCatalogCache is a read-through catalog cache shared across instances.
// Redis failures never fail a lookup; the request falls through to next.
type RedisCatalogCache struct {
	client     *redis.Client
	ownsClient bool
	next       supply.CatalogLookup
	keyPrefix  string
	ttl        time.Duration
	logger     *zap.Logger
}

// RedisCatalogCacheOption is a functional option for configuring the cache
type RedisCatalogCacheOption func(*RedisCatalogCache)

// WithRedisTTL sets how long entries live in Redis
func WithRedisTTL(ttl time.Duration) RedisCatalogCacheOption {
	return func(c *RedisCatalogCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the key namespace
func WithKeyPrefix(prefix string) RedisCatalogCacheOption {
	return func(c *RedisCatalogCache) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithCacheLogger sets the logger for the cache
func WithCacheLogger(logger *zap.Logger) RedisCatalogCacheOption {
	return func(c *RedisCatalogCache) {
		c.logger = logger
	}
}

// NewRedisCatalogCache connects to Redis and wraps next
func NewRedisCatalogCache(cfg RedisConfig, next supply.CatalogLookup, opts ...RedisCatalogCacheOption) (*RedisCatalogCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := NewRedisCatalogCacheWithClient(client, next, opts...)
	c.ownsClient = true
	return c, nil
}

// NewRedisCatalogCacheWithClient creates a cache on an existing client.
// The caller keeps ownership of the client.
func NewRedisCatalogCacheWithClient(client *redis.Client, next supply.CatalogLookup, opts ...RedisCatalogCacheOption) *RedisCatalogCache {
	c := &RedisCatalogCache{
		client:    client,
		next:      next,
		keyPrefix: defaultCatalogKeyPrefix,
		ttl:       defaultCatalogTTL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the cached entry or loads it from next and stores it
func (c *RedisCatalogCache) Resolve(ctx context.Context, code string) (*supply.CatalogEntry, error) {
	key := c.keyPrefix + code

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ce cachedEntry
		if uerr := json.Unmarshal(data, &ce); uerr == nil {
			return ce.toDomain(), nil
		}
		c.logger.Warn("Discarding undecodable catalog cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		// The caller's deadline is gone; next reports the timeout
	default:
		c.logger.Warn("Redis catalog cache read failed", zap.String("code", code), zap.Error(err))
	}

	entry, err := c.next.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	if data, merr := json.Marshal(fromDomain(entry)); merr == nil {
		if serr := c.client.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.logger.Debug("Redis catalog cache write failed", zap.String("code", code), zap.Error(serr))
		}
	}
	return entry, nil
}

// Invalidate removes one code from the cache
func (c *RedisCatalogCache) Invalidate(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, c.keyPrefix+code).Err(); err != nil {
		return fmt.Errorf("failed to invalidate catalog entry %s: %w", code, err)
	}
	return nil
}

// Close closes the client if the cache created it
func (c *RedisCatalogCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

func fromDomain(e *supply.CatalogEntry) cachedEntry {
	return cachedEntry{
		Code:      e.Code,
		Name:      e.Name,
		Category:  e.Category,
		Unit:      e.Unit,
		UnitPrice: e.UnitPrice,
		Active:    e.Active,
	}
}

func (ce cachedEntry) toDomain() *supply.CatalogEntry {
	return &supply.CatalogEntry{
		Code:      ce.Code,
		Name:      ce.Name,
		Category:  ce.Category,
		Unit:      ce.Unit,
		UnitPrice: ce.UnitPrice,
		Active:    ce.Active,
	}
}

var _ supply.CatalogLookup = (*RedisCatalogCache)(nil)
