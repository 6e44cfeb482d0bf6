// Пакет order реализует координатор создания заказа: резервирование
// остатка, фиксация заказа и компенсация резерва при сбое записи.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vinyl/internal/cache"
	"github.com/vladislavdragonenkov/vinyl/internal/domain"
	"github.com/vladislavdragonenkov/vinyl/internal/metrics"
)

// releaseTimeout ограничивает компенсацию независимо от дедлайна запроса:
// контекст запроса к моменту компенсации может быть уже отменён.
const releaseTimeout = 5 * time.Second

// Coordinator описывает интерфейс создания заказов.
type Coordinator interface {
	Create(ctx context.Context, recordID string, qty int32) (domain.Order, error)
	Get(ctx context.Context, orderID string) (domain.Order, error)
	ListByRecord(ctx context.Context, recordID string, limit int) ([]domain.Order, error)
}

// coordinator реализует последовательность шагов: Reserve → Persist → Release при сбое.
type coordinator struct {
	orders      domain.OrderRepository
	ledger      domain.StockLedger
	outbox      domain.OutboxRepository
	invalidator cache.Invalidator
	logger      *log.Entry
	metrics     *metrics.OrderMetrics
	now         func() time.Time
}

// NewCoordinator создаёт рабочий экземпляр координатора.
func NewCoordinator(
	orders domain.OrderRepository,
	ledger domain.StockLedger,
	outbox domain.OutboxRepository,
	invalidator cache.Invalidator,
	logger *log.Entry,
) Coordinator {
	if logger == nil {
		logger = log.New().WithField("component", "order-coordinator")
	}
	return &coordinator{
		orders:      orders,
		ledger:      ledger,
		outbox:      outbox,
		invalidator: invalidator,
		logger:      logger,
		metrics:     metrics.NewOrderMetrics(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NewCoordinatorWithoutMetrics создаёт координатор без метрик (для тестов).
func NewCoordinatorWithoutMetrics(
	orders domain.OrderRepository,
	ledger domain.StockLedger,
	outbox domain.OutboxRepository,
	invalidator cache.Invalidator,
	logger *log.Entry,
) Coordinator {
	if logger == nil {
		logger = log.New().WithField("component", "order-coordinator")
	}
	return &coordinator{
		orders:      orders,
		ledger:      ledger,
		outbox:      outbox,
		invalidator: invalidator,
		logger:      logger,
		metrics:     nil,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create резервирует qty единиц записи и фиксирует заказ с ценой на момент
// резервирования. При сбое записи заказа резерв возвращается ровно один раз;
// если и возврат провалился, инцидент логируется как stock_undercount и
// считается в метрике компенсаций — остаток при этом занижен, но oversell
// невозможен.
func (c *coordinator) Create(ctx context.Context, recordID string, qty int32) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	if recordID == "" {
		c.rejected(metrics.RejectReasonInvalidRequest)
		return domain.Order{}, domain.ErrRecordIDRequired
	}
	if qty < 1 {
		c.rejected(metrics.RejectReasonInvalidRequest)
		return domain.Order{}, domain.ErrOrderQtyInvalid
	}

	record, err := c.ledger.Reserve(ctx, recordID, qty)
	if err != nil {
		switch {
		case domain.IsInsufficientStock(err):
			c.rejected(metrics.RejectReasonInsufficientStock)
		case domain.IsNotFound(err):
			c.rejected(metrics.RejectReasonRecordNotFound)
		}
		return domain.Order{}, err
	}

	// Резерв уже удержан: событие-намерение попадает в outbox до записи
	// заказа, чтобы по журналу можно было найти резерв без заказа.
	c.emitEvent(EventStockReserved, recordID, map[string]interface{}{
		"record_id": recordID,
		"qty":       qty,
		"remaining": record.Qty,
	})

	order := domain.Order{
		ID:         uuid.NewString(),
		RecordID:   recordID,
		Qty:        qty,
		PriceMinor: record.PriceMinor,
		CreatedAt:  c.now(),
	}

	if err := c.orders.Insert(ctx, order); err != nil {
		if c.metrics != nil {
			c.metrics.RecordPersistFailure()
		}
		c.logger.WithError(err).WithFields(log.Fields{
			"record_id": recordID,
			"qty":       qty,
		}).Warn("order persist failed, compensating reserve")

		c.release(ctx, recordID, qty)
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	c.emitEvent(EventOrderCreated, order.ID, map[string]interface{}{
		"order_id":    order.ID,
		"record_id":   order.RecordID,
		"qty":         order.Qty,
		"price_minor": order.PriceMinor,
	})
	c.invalidate(ctx)

	if c.metrics != nil {
		c.metrics.RecordOrderCreated()
	}
	c.logger.WithFields(log.Fields{
		"order_id":  order.ID,
		"record_id": order.RecordID,
		"qty":       order.Qty,
	}).Info("order created")

	return order, nil
}

// Get возвращает заказ по идентификатору.
func (c *coordinator) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return c.orders.Get(ctx, orderID)
}

// ListByRecord возвращает последние заказы по записи каталога.
func (c *coordinator) ListByRecord(ctx context.Context, recordID string, limit int) ([]domain.Order, error) {
	if recordID == "" {
		return nil, domain.ErrRecordIDRequired
	}
	return c.orders.ListByRecord(ctx, recordID, limit)
}

// release возвращает резерв после провала записи заказа. Вызывается ровно
// один раз: повторный Release задвоил бы остаток.
func (c *coordinator) release(ctx context.Context, recordID string, qty int32) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if c.metrics != nil {
		c.metrics.RecordCompensation()
	}

	if _, err := c.ledger.Release(releaseCtx, recordID, qty); err != nil {
		if c.metrics != nil {
			c.metrics.RecordCompensationFailed()
		}
		c.logger.WithError(err).WithFields(log.Fields{
			"record_id": recordID,
			"qty":       qty,
			"incident":  "stock_undercount",
		}).Error("compensation failed, stock undercounted")
		return
	}

	c.emitEvent(EventStockReleased, recordID, map[string]interface{}{
		"record_id": recordID,
		"qty":       qty,
	})
	c.invalidate(ctx)

	c.logger.WithFields(log.Fields{
		"record_id": recordID,
		"qty":       qty,
	}).Info("reserve compensated")
}

func (c *coordinator) invalidate(ctx context.Context) {
	if c.invalidator == nil {
		return
	}
	if err := c.invalidator.InvalidateAll(ctx); err != nil {
		c.logger.WithError(err).Warn("cache invalidation failed")
	}
}

func (c *coordinator) emitEvent(eventType, aggregateID string, payload map[string]interface{}) {
	if c.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := c.outbox.Enqueue(msg); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("enqueue event failed")
	}
}

func (c *coordinator) rejected(reason string) {
	if c.metrics != nil {
		c.metrics.RecordOrderRejected(reason)
	}
}

// Типы событий заказа в outbox.
const (
	AggregateOrder = "order"

	EventStockReserved = "StockReserved"
	EventStockReleased = "StockReleased"
	EventOrderCreated  = "OrderCreated"
)

var _ Coordinator = (*coordinator)(nil)
