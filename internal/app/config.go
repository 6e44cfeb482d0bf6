package app

import (
	"os"
	"strings"
	"time"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr string
	CacheTTL  time.Duration

	KafkaBrokers string
	KafkaGroupID string

	TracklistBaseURL string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает конфигурацию по умолчанию: in-memory хранилище
// и кэш, без Kafka и внешнего каталога.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		CacheTTL:                    30 * time.Second,
		KafkaGroupID:                "vinyl-catalog",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           5,
		OutboxRetryDelay:            200 * time.Millisecond,
		IdempotencyCleanupInterval:  5 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// ConfigFromEnv строит конфигурацию из переменных окружения поверх значений
// по умолчанию. VINYL_PG_DSN переключает хранилище на postgres.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if addr := envString("VINYL_HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if addr := envString("VINYL_METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}
	if dsn := envString("VINYL_PG_DSN"); dsn != "" {
		cfg.StorageDriver = StorageDriverPostgres
		cfg.PostgresDSN = dsn
	}
	if raw := envString("VINYL_PG_AUTO_MIGRATE"); raw != "" {
		cfg.PostgresAutoMigrate = raw != "false" && raw != "0"
	}
	if addr := envString("VINYL_REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
	if ttl := envDuration("VINYL_CACHE_TTL"); ttl > 0 {
		cfg.CacheTTL = ttl
	}
	if brokers := envString("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = brokers
	}
	if group := envString("VINYL_KAFKA_GROUP_ID"); group != "" {
		cfg.KafkaGroupID = group
	}
	if baseURL := envString("VINYL_TRACKLIST_URL"); baseURL != "" {
		cfg.TracklistBaseURL = baseURL
	}
	if interval := envDuration("VINYL_OUTBOX_POLL_INTERVAL"); interval > 0 {
		cfg.OutboxPollInterval = interval
	}

	return cfg
}

func envString(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func envDuration(name string) time.Duration {
	raw := envString(name)
	if raw == "" {
		return 0
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return value
}
