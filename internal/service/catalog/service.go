// Пакет catalog реализует CRUD каталога пластинок, кэшированное чтение
// витрины и обогащение карточек треклистами из внешнего источника.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vinyl/internal/cache"
	"github.com/vladislavdragonenkov/vinyl/internal/domain"
	"github.com/vladislavdragonenkov/vinyl/internal/metrics"
)

// defaultListTTL — короткий TTL страниц витрины: верхняя граница
// рассинхронизации, если явная инвалидация не дошла до инстанса.
const defaultListTTL = 30 * time.Second

// ListResult — страница витрины вместе с полным числом совпадений.
type ListResult struct {
	Records []domain.Record
	Total   int
	Limit   int
	Offset  int
}

// Service описывает операции каталога.
type Service interface {
	CreateRecord(ctx context.Context, record domain.Record) (domain.Record, error)
	GetRecord(ctx context.Context, id string) (domain.Record, error)
	ListRecords(ctx context.Context, filter domain.RecordFilter) (ListResult, error)
	UpdateRecord(ctx context.Context, record domain.Record) (domain.Record, error)
	DeleteRecord(ctx context.Context, id string) error
	EnrichTracklist(ctx context.Context, id string) (domain.Record, error)
}

type service struct {
	records    domain.RecordRepository
	cache      cache.RecordCache
	tracklists domain.TracklistProvider
	outbox     domain.OutboxRepository
	logger     *log.Entry
	metrics    *metrics.CacheMetrics
	listTTL    time.Duration
}

// ServiceOption настраивает сервис каталога.
type ServiceOption func(*service)

// WithListTTL задаёт время жизни закэшированных страниц витрины.
func WithListTTL(ttl time.Duration) ServiceOption {
	return func(s *service) {
		if ttl > 0 {
			s.listTTL = ttl
		}
	}
}

// NewService создаёт сервис каталога. Кэш, провайдер треклистов и outbox
// опциональны: без кэша все чтения идут в хранилище.
func NewService(
	records domain.RecordRepository,
	recordCache cache.RecordCache,
	tracklists domain.TracklistProvider,
	outbox domain.OutboxRepository,
	logger *log.Entry,
	options ...ServiceOption,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	s := &service{
		records:    records,
		cache:      recordCache,
		tracklists: tracklists,
		outbox:     outbox,
		logger:     logger,
		metrics:    metrics.NewCacheMetrics(),
		listTTL:    defaultListTTL,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	records domain.RecordRepository,
	recordCache cache.RecordCache,
	tracklists domain.TracklistProvider,
	outbox domain.OutboxRepository,
	logger *log.Entry,
	options ...ServiceOption,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	s := &service{
		records:    records,
		cache:      recordCache,
		tracklists: tracklists,
		outbox:     outbox,
		logger:     logger,
		metrics:    nil,
		listTTL:    defaultListTTL,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// CreateRecord валидирует и сохраняет новую карточку.
func (s *service) CreateRecord(ctx context.Context, record domain.Record) (domain.Record, error) {
	if errs := record.ValidateInvariants(); len(errs) > 0 {
		return domain.Record{}, errors.Join(errs...)
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	record.Version = 0
	record.DeletedAt = nil

	if err := s.records.Create(ctx, record); err != nil {
		return domain.Record{}, fmt.Errorf("create record: %w", err)
	}

	s.emitEvent(EventRecordCreated, record.ID, map[string]interface{}{
		"record_id": record.ID,
		"artist":    record.Artist,
		"album":     record.Album,
	})
	s.invalidate(ctx)

	s.logger.WithFields(log.Fields{
		"record_id": record.ID,
		"artist":    record.Artist,
		"album":     record.Album,
	}).Info("record created")

	return record, nil
}

// GetRecord возвращает карточку по идентификатору. Тумбстоуны не видны.
func (s *service) GetRecord(ctx context.Context, id string) (domain.Record, error) {
	if id == "" {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return s.records.Get(ctx, id)
}

// ListRecords возвращает страницу витрины по фильтру, cache-aside.
// Ошибки кэша деградируют до чтения из хранилища.
func (s *service) ListRecords(ctx context.Context, filter domain.RecordFilter) (ListResult, error) {
	filter = filter.Normalize()
	key := filter.CacheKey()

	if s.cache != nil {
		entry, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("cache get failed")
		} else if ok {
			if s.metrics != nil {
				s.metrics.RecordHit()
			}
			return ListResult{
				Records: entry.Records,
				Total:   entry.Total,
				Limit:   filter.Limit,
				Offset:  filter.Offset,
			}, nil
		}
		if s.metrics != nil {
			s.metrics.RecordMiss()
		}
	}

	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("list records: %w", err)
	}

	if s.cache != nil {
		entry := cache.Entry{Records: records, Total: total}
		if err := s.cache.Put(ctx, key, entry, s.listTTL); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("cache put failed")
		}
	}

	return ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// UpdateRecord сохраняет изменения карточки с optimistic locking по Version.
// Остаток через Update не меняется: qty трогает только складской ledger.
func (s *service) UpdateRecord(ctx context.Context, record domain.Record) (domain.Record, error) {
	if record.ID == "" {
		return domain.Record{}, domain.ErrRecordIDRequired
	}
	if errs := record.ValidateInvariants(); len(errs) > 0 {
		return domain.Record{}, errors.Join(errs...)
	}

	current, err := s.records.Get(ctx, record.ID)
	if err != nil {
		return domain.Record{}, err
	}
	record.Qty = current.Qty
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = time.Now().UTC()

	if err := s.records.Update(ctx, record); err != nil {
		return domain.Record{}, err
	}

	updated, err := s.records.Get(ctx, record.ID)
	if err != nil {
		return domain.Record{}, err
	}

	s.emitEvent(EventRecordUpdated, record.ID, map[string]interface{}{
		"record_id": record.ID,
		"version":   updated.Version,
	})
	s.invalidate(ctx)

	return updated, nil
}

// DeleteRecord помечает карточку тумбстоуном. Повторное удаление — not found.
func (s *service) DeleteRecord(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrRecordNotFound
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}

	s.emitEvent(EventRecordDeleted, id, map[string]interface{}{
		"record_id": id,
	})
	s.invalidate(ctx)

	s.logger.WithField("record_id", id).Info("record deleted")
	return nil
}

// EnrichTracklist подтягивает треклист из внешнего источника по ExternalRef
// и сохраняет его в карточке.
func (s *service) EnrichTracklist(ctx context.Context, id string) (domain.Record, error) {
	if s.tracklists == nil {
		return domain.Record{}, domain.ErrTracklistUnavailable
	}

	record, err := s.records.Get(ctx, id)
	if err != nil {
		return domain.Record{}, err
	}
	if record.ExternalRef == "" {
		return domain.Record{}, domain.ErrExternalRefMissing
	}

	tracks, err := s.tracklists.Fetch(ctx, record.ExternalRef)
	if err != nil {
		return domain.Record{}, fmt.Errorf("fetch tracklist: %w", err)
	}

	record.Tracklist = tracks
	record.UpdatedAt = time.Now().UTC()
	if err := s.records.Update(ctx, record); err != nil {
		return domain.Record{}, err
	}

	updated, err := s.records.Get(ctx, id)
	if err != nil {
		return domain.Record{}, err
	}

	s.emitEvent(EventRecordUpdated, id, map[string]interface{}{
		"record_id": id,
		"tracks":    len(tracks),
	})
	s.invalidate(ctx)

	return updated, nil
}

func (s *service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.WithError(err).Warn("cache invalidation failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordInvalidation()
	}
}

func (s *service) emitEvent(eventType, recordID string, payload map[string]interface{}) {
	if s.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"record_id": recordID,
			"event":     eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: AggregateRecord,
		AggregateID:   recordID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"record_id": recordID,
			"event":     eventType,
		}).Error("enqueue event failed")
	}
}

// Типы событий каталога в outbox.
const (
	AggregateRecord = "record"

	EventRecordCreated = "RecordCreated"
	EventRecordUpdated = "RecordUpdated"
	EventRecordDeleted = "RecordDeleted"
)

var _ Service = (*service)(nil)
