// Пакет app собирает сервис из конфигурации: хранилище, кэш, Kafka,
// фоновые воркеры и HTTP-серверы, и управляет их жизненным циклом.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/vinyl/internal/health"
	"github.com/vladislavdragonenkov/vinyl/internal/httpapi"
	"github.com/vladislavdragonenkov/vinyl/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/vinyl/internal/service/catalog"
	"github.com/vladislavdragonenkov/vinyl/internal/service/idempotency"
	"github.com/vladislavdragonenkov/vinyl/internal/service/order"
	"github.com/vladislavdragonenkov/vinyl/internal/service/outbox"
	"github.com/vladislavdragonenkov/vinyl/internal/service/stock"
	"github.com/vladislavdragonenkov/vinyl/internal/service/tracklist"
	"github.com/vladislavdragonenkov/vinyl/internal/version"
)

const (
	pingTimeout     = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Run запускает сервис и блокируется до отмены контекста или фатальной
// ошибки HTTP-сервера. Возвращает ctx.Err() при штатной остановке.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if deps.closeFn == nil {
			return
		}
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage dependencies")
		}
	}()

	var tracklists domain.TracklistProvider
	if cfg.TracklistBaseURL != "" {
		tracklists = tracklist.NewClient(cfg.TracklistBaseURL, logger.WithField("layer", "tracklist"))
	}

	catalogSvc := catalog.NewService(
		deps.records,
		deps.recordCache,
		tracklists,
		deps.outboxRepo,
		logger.WithField("layer", "catalog"),
		catalog.WithListTTL(cfg.CacheTTL),
	)
	ledger := stock.NewLedger(deps.records, logger.WithField("layer", "stock"))
	coordinator := order.NewCoordinator(
		deps.orders,
		ledger,
		deps.outboxRepo,
		deps.recordCache,
		logger.WithField("layer", "order"),
	)

	// Kafka опционален: без брокеров outbox копит события, но не публикует.
	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Warn("continuing without kafka")
	}
	defer closeKafkaProducer(kafkaProducer, logger)

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workersWG sync.WaitGroup

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer)
		worker := outbox.NewWorker(
			deps.outboxRepo,
			publisher,
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		workersWG.Add(1)
		go func() {
			defer workersWG.Done()
			worker.Run(workersCtx)
		}()
	}

	cleanupWorker := idempotency.NewCleanupWorker(
		deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("layer", "idempotency")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	workersWG.Add(1)
	go func() {
		defer workersWG.Done()
		cleanupWorker.Run(workersCtx)
	}()

	invalidationConsumer := startInvalidationConsumer(workersCtx, cfg, deps, logger)
	defer stopInvalidationConsumer(invalidationConsumer, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	if deps.cacheChecker != nil {
		healthHandler.RegisterChecker("cache", deps.cacheChecker)
	}

	api := httpapi.NewAPI(
		catalogSvc,
		coordinator,
		deps.idempotencyRepo,
		healthHandler,
		logger.WithField("layer", "http"),
	)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Routes()}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		workersWG.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		workersWG.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startInvalidationConsumer подписывает инстанс на события каталога,
// чтобы мутации соседних инстансов сбрасывали локальный кэш.
func startInvalidationConsumer(ctx context.Context, cfg Config, deps runtimeDependencies, logger *log.Entry) *kafka.Consumer {
	if cfg.KafkaBrokers == "" {
		return nil
	}

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	handler := kafka.NewInvalidationHandler(deps.recordCache, logger.WithField("layer", "invalidator"))
	consumer, err := kafka.NewConsumer(
		brokers,
		cfg.KafkaGroupID,
		[]string{kafka.TopicCatalogEvents, kafka.TopicOrderEvents},
		handler,
	)
	if err != nil {
		logger.WithError(err).Warn("failed to create invalidation consumer, continuing without it")
		return nil
	}

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Warn("invalidation consumer stopped with error")
		}
	}()

	logger.WithField("group", cfg.KafkaGroupID).Info("invalidation consumer started")
	return consumer
}

func stopInvalidationConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop invalidation consumer")
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
