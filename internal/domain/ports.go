package domain

import (
	"context"
	"time"
)

// StockLedger описывает складские операции поверх атомарного условного
// обновления хранилища. Вся гарантия «no oversell» живёт здесь.
type StockLedger interface {
	// Reserve атомарно списывает qty единиц под заказ и возвращает карточку
	// после списания. ErrInsufficientStock — ожидаемый бизнес-отказ.
	Reserve(ctx context.Context, recordID string, qty int32) (Record, error)
	// Release безусловно возвращает qty единиц на склад (компенсация).
	// Примитив не идемпотентен: вызывать не более одного раза на провал.
	Release(ctx context.Context, recordID string, qty int32) (Record, error)
}

// TracklistProvider получает tracklist релиза из внешнего каталога.
type TracklistProvider interface {
	Fetch(ctx context.Context, externalRef string) ([]Track, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
