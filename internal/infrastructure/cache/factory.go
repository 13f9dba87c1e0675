package cache

import (
	"io"
	"time"

	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// CatalogLookupFactory assembles the catalog lookup chain:
// timeout -> in-process TTL cache -> Redis (optional) -> store
type CatalogLookupFactory struct {
	redisConfig config.RedisConfig
	timeout     time.Duration
	localTTL    time.Duration
	logger      *zap.Logger
}

// CatalogLookupFactoryOption is a functional option for configuring the factory
type CatalogLookupFactoryOption func(*CatalogLookupFactory)

// WithLogger sets the logger for the factory and the caches it builds
func WithLogger(logger *zap.Logger) CatalogLookupFactoryOption {
	return func(f *CatalogLookupFactory) {
		f.logger = logger
	}
}

// WithLocalTTL sets the in-process cache TTL
func WithLocalTTL(ttl time.Duration) CatalogLookupFactoryOption {
	return func(f *CatalogLookupFactory) {
		f.localTTL = ttl
	}
}

// NewCatalogLookupFactory creates a new factory
func NewCatalogLookupFactory(redisCfg config.RedisConfig, timeout time.Duration, opts ...CatalogLookupFactoryOption) *CatalogLookupFactory {
	f := &CatalogLookupFactory{
		redisConfig: redisCfg,
		timeout:     timeout,
		localTTL:    defaultLocalTTL,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build wraps store with the cache layers. The returned closer releases
// them. When Redis is enabled but unreachable the chain is built without it.
func (f *CatalogLookupFactory) Build(store supply.CatalogLookup) (supply.CatalogLookup, io.Closer) {
	closers := multiCloser{}
	lookup := store

	if f.redisConfig.Enabled {
		redisCache, err := NewRedisCatalogCache(RedisConfig{
			Host:     f.redisConfig.Host,
			Port:     f.redisConfig.Port,
			Password: f.redisConfig.Password,
			DB:       f.redisConfig.DB,
		}, lookup, WithRedisTTL(f.redisConfig.CacheTTL), WithCacheLogger(f.logger))
		if err != nil {
			f.logger.Warn("Redis unavailable, catalog cache runs in-process only", zap.Error(err))
		} else {
			f.logger.Info("Using Redis catalog cache", zap.String("addr", f.redisConfig.Addr()))
			lookup = redisCache
			closers = append(closers, redisCache)
		}
	}

	local := NewInMemoryCatalogCache(lookup, f.localTTL)
	closers = append(closers, local)

	return NewTimeoutLookup(local, f.timeout), closers
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
