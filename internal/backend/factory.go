package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cashflow/internal/amqp"
	"cashflow/internal/analytics"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/services"
	"cashflow/internal/storage"
	"cashflow/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentStorage)}
}

// CreateBackend opens the store, the caches and the publisher. A broker
// that cannot be reached is logged and skipped; change events are best
// effort.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}
	cleanups := []CleanupFunc{store.Close}

	caches, closeCaches, err := f.openCaches(ctx, config)
	if err != nil {
		store.Close()
		return nil, err
	}
	if closeCaches != nil {
		cleanups = append(cleanups, closeCaches)
	}

	res := &BackendResult{Store: store, Caches: caches}
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change events", applog.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Publisher = client
			cleanups = append(cleanups, client.Close)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Backend ready",
		"backend", config.Type,
		"cache", config.Cache,
		"amqp_enabled", res.Publisher != nil)
	return res, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.Open(ctx, storage.SQLite, config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := storage.Open(ctx, storage.Postgres, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) openCaches(ctx context.Context, config Config) (*services.ReportCaches, CleanupFunc, error) {
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	size := config.CacheSize
	if size <= 0 {
		size = 256
	}

	switch config.Cache {
	case NoCache:
		return &services.ReportCaches{}, nil, nil
	case RedisCache:
		client, err := cache.NewRedisClient(ctx, config.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisCaches(client, ttl), client.Close, nil
	default:
		caches := &services.ReportCaches{
			Monthly: cache.NewLRUCache[[]core.MonthTotal](size, ttl),
			Rows:    cache.NewLRUCache[[]analytics.Row](size, ttl),
			Slices:  cache.NewLRUCache[[]core.CategorySlice](size, ttl),
			Balance: cache.NewLRUCache[[]core.BalancePoint](size, ttl),
		}
		manager := cache.NewManager()
		manager.Register(caches.Monthly)
		manager.Register(caches.Rows)
		manager.Register(caches.Slices)
		manager.Register(caches.Balance)
		manager.StartCleanup(ttl)
		return caches, func() error { manager.Stop(); return nil }, nil
	}
}

func redisCaches(client *redis.Client, ttl time.Duration) *services.ReportCaches {
	return &services.ReportCaches{
		Monthly: cache.NewRedisCache[[]core.MonthTotal](client, "cashflow:monthly", ttl),
		Rows:    cache.NewRedisCache[[]analytics.Row](client, "cashflow:rows", ttl),
		Slices:  cache.NewRedisCache[[]core.CategorySlice](client, "cashflow:slices", ttl),
		Balance: cache.NewRedisCache[[]core.BalancePoint](client, "cashflow:balance", ttl),
	}
}
