package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vinyl/internal/cache"
	cachemem "github.com/vladislavdragonenkov/vinyl/internal/cache/memory"
	cacheredis "github.com/vladislavdragonenkov/vinyl/internal/cache/redis"
	"github.com/vladislavdragonenkov/vinyl/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/vinyl/internal/health"
	"github.com/vladislavdragonenkov/vinyl/internal/storage/memory"
	"github.com/vladislavdragonenkov/vinyl/internal/storage/postgres"
)

// runtimeDependencies объединяет хранилище, кэш и health-пробы,
// собранные по конфигурации.
type runtimeDependencies struct {
	records         domain.RecordRepository
	orders          domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	recordCache     cache.RecordCache

	storageChecker healthcheck.Checker
	cacheChecker   healthcheck.Checker

	closeFn func() error
}

// initRuntimeDependencies создаёт хранилище и кэш по конфигурации.
// Memory-варианты не требуют внешних сервисов и используются как fallback.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	if logger == nil {
		logger = log.New().WithField("component", "app")
	}

	deps := runtimeDependencies{}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		deps.records = memory.NewRecordRepository()
		deps.orders = memory.NewOrderRepository()
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres storage driver requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.records = postgres.NewRecordRepository(store)
		deps.orders = postgres.NewOrderRepository(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
		deps.storageChecker = healthcheck.NewSimpleChecker("postgres", func() error {
			return store.Ping(context.Background())
		})
		deps.closeFn = store.Close
		logger.Info("postgres storage initialized")
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		client, err := cacheredis.Open(ctx, cfg.RedisAddr)
		if err != nil {
			logger.WithError(err).Warn("redis is unavailable, falling back to in-memory cache")
			deps.recordCache = cachemem.NewRecordCache()
		} else {
			deps.recordCache = cacheredis.NewRecordCache(client)
			deps.cacheChecker = redisChecker(client)
			prevClose := deps.closeFn
			deps.closeFn = func() error {
				closeErr := client.Close()
				if prevClose != nil {
					if err := prevClose(); err != nil {
						return err
					}
				}
				return closeErr
			}
			logger.WithField("addr", cfg.RedisAddr).Info("redis cache initialized")
		}
	} else {
		deps.recordCache = cachemem.NewRecordCache()
	}

	return deps, nil
}

func redisChecker(client *goredis.Client) healthcheck.Checker {
	return healthcheck.NewSimpleChecker("redis", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		return client.Ping(ctx).Err()
	})
}
