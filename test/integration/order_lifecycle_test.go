package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/vinyl/internal/cache"
	cachemem "github.com/vladislavdragonenkov/vinyl/internal/cache/memory"
	"github.com/vladislavdragonenkov/vinyl/internal/domain"
	"github.com/vladislavdragonenkov/vinyl/internal/service/catalog"
	"github.com/vladislavdragonenkov/vinyl/internal/service/order"
	"github.com/vladislavdragonenkov/vinyl/internal/service/stock"
	"github.com/vladislavdragonenkov/vinyl/internal/service/tracklist"
	"github.com/vladislavdragonenkov/vinyl/internal/storage/memory"
)

// failingOrderRepository ломает запись заказа, чтобы проверить компенсацию резерва.
type failingOrderRepository struct {
	domain.OrderRepository
	insertErr error
}

func (r *failingOrderRepository) Insert(ctx context.Context, o domain.Order) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.OrderRepository.Insert(ctx, o)
}

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказа:
// резервирование остатка, фиксацию заказа, компенсацию и инвалидацию кэша.
type OrderLifecycleTestSuite struct {
	suite.Suite
	records     domain.RecordRepository
	orders      *failingOrderRepository
	outbox      domain.OutboxRepository
	recordCache cache.RecordCache
	tracklists  *tracklist.MockProvider
	catalog     catalog.Service
	coordinator order.Coordinator
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.records = memory.NewRecordRepository()
	suite.orders = &failingOrderRepository{OrderRepository: memory.NewOrderRepository()}
	suite.outbox = memory.NewOutboxRepository()
	suite.recordCache = cachemem.NewRecordCache()
	suite.tracklists = tracklist.NewMockProvider()

	ledger := stock.NewLedger(suite.records, logger)

	suite.catalog = catalog.NewServiceWithoutMetrics(
		suite.records,
		suite.recordCache,
		suite.tracklists,
		suite.outbox,
		logger,
	)
	suite.coordinator = order.NewCoordinatorWithoutMetrics(
		suite.orders,
		ledger,
		suite.outbox,
		suite.recordCache,
		logger,
	)
}

func (suite *OrderLifecycleTestSuite) seedRecord(id string, qty int32, priceMinor int64) domain.Record {
	created, err := suite.catalog.CreateRecord(context.Background(), domain.Record{
		ID:          id,
		Artist:      "Аквариум",
		Album:       "Треугольник",
		PriceMinor:  priceMinor,
		Qty:         qty,
		Format:      "LP",
		Category:    "rock",
		ExternalRef: "ref-" + id,
	})
	require.NoError(suite.T(), err)
	return created
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	ctx := context.Background()

	record := suite.seedRecord("rec-lifecycle", 5, 320000)

	created, err := suite.coordinator.Create(ctx, record.ID, 2)
	require.NoError(suite.T(), err)
	require.NotEmpty(suite.T(), created.ID)
	require.Equal(suite.T(), record.ID, created.RecordID)
	require.Equal(suite.T(), int32(2), created.Qty)
	require.Equal(suite.T(), int64(320000), created.PriceMinor)

	// Остаток уменьшился ровно на количество в заказе.
	updated, err := suite.catalog.GetRecord(ctx, record.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(3), updated.Qty)

	// Заказ читается обратно без изменений.
	loaded, err := suite.coordinator.Get(ctx, created.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), created.ID, loaded.ID)
	require.Equal(suite.T(), created.PriceMinor, loaded.PriceMinor)

	// В outbox попали событие резерва и событие заказа.
	events := suite.pendingEventTypes()
	require.Contains(suite.T(), events, order.EventStockReserved)
	require.Contains(suite.T(), events, order.EventOrderCreated)
	require.NotContains(suite.T(), events, order.EventStockReleased)
}

func (suite *OrderLifecycleTestSuite) TestPriceSnapshotImmutable() {
	ctx := context.Background()

	record := suite.seedRecord("rec-snapshot", 10, 150000)

	created, err := suite.coordinator.Create(ctx, record.ID, 1)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(150000), created.PriceMinor)

	// Меняем цену в каталоге после создания заказа.
	current, err := suite.catalog.GetRecord(ctx, record.ID)
	require.NoError(suite.T(), err)
	current.PriceMinor = 999000
	_, err = suite.catalog.UpdateRecord(ctx, current)
	require.NoError(suite.T(), err)

	// Снимок цены в заказе не изменился.
	loaded, err := suite.coordinator.Get(ctx, created.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(150000), loaded.PriceMinor)

	// Новый заказ берёт уже новую цену.
	next, err := suite.coordinator.Create(ctx, record.ID, 1)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(999000), next.PriceMinor)
}

func (suite *OrderLifecycleTestSuite) TestConcurrentOrdersNeverOversell() {
	ctx := context.Background()

	const stockQty = 20
	const workers = 35

	record := suite.seedRecord("rec-race", stockQty, 80000)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.coordinator.Create(ctx, record.ID, 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	rejected := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case domain.IsInsufficientStock(err):
			rejected++
		default:
			suite.T().Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(suite.T(), stockQty, succeeded)
	require.Equal(suite.T(), workers-stockQty, rejected)

	// Остаток выбран до нуля и не ушёл в минус.
	updated, err := suite.catalog.GetRecord(ctx, record.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(0), updated.Qty)

	// Число заказов совпадает с числом успешных резервов.
	orders, err := suite.coordinator.ListByRecord(ctx, record.ID, 0)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), orders, stockQty)
}

func (suite *OrderLifecycleTestSuite) TestInsufficientStockRejection() {
	ctx := context.Background()

	record := suite.seedRecord("rec-low", 1, 50000)

	_, err := suite.coordinator.Create(ctx, record.ID, 3)
	require.Error(suite.T(), err)
	require.True(suite.T(), domain.IsInsufficientStock(err))

	// Остаток не изменился, заказов нет.
	updated, err := suite.catalog.GetRecord(ctx, record.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(1), updated.Qty)

	orders, err := suite.coordinator.ListByRecord(ctx, record.ID, 0)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), orders)
}

func (suite *OrderLifecycleTestSuite) TestPersistFailureCompensatesReserve() {
	ctx := context.Background()

	record := suite.seedRecord("rec-comp", 4, 120000)

	suite.orders.insertErr = errors.New("storage is down")
	_, err := suite.coordinator.Create(ctx, record.ID, 3)
	require.Error(suite.T(), err)
	require.False(suite.T(), domain.IsInsufficientStock(err))

	// Резерв возвращён: остаток снова полный.
	updated, err := suite.catalog.GetRecord(ctx, record.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(4), updated.Qty)

	// В журнале есть и резерв, и возврат, но нет события заказа.
	events := suite.pendingEventTypes()
	require.Contains(suite.T(), events, order.EventStockReserved)
	require.Contains(suite.T(), events, order.EventStockReleased)
	require.NotContains(suite.T(), events, order.EventOrderCreated)

	// После восстановления хранилища заказ проходит.
	suite.orders.insertErr = nil
	created, err := suite.coordinator.Create(ctx, record.ID, 3)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(3), created.Qty)
}

func (suite *OrderLifecycleTestSuite) TestOrderInvalidatesListCache() {
	ctx := context.Background()

	record := suite.seedRecord("rec-cache", 6, 70000)

	filter := domain.RecordFilter{Artist: "Аквариум"}

	// Первый запрос кладёт страницу в кэш.
	first, err := suite.catalog.ListRecords(ctx, filter)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 1, first.Total)
	require.Equal(suite.T(), int32(6), first.Records[0].Qty)

	// Создание заказа инвалидирует кэш целиком.
	_, err = suite.coordinator.Create(ctx, record.ID, 2)
	require.NoError(suite.T(), err)

	// Повторный запрос видит новый остаток, а не закэшированный.
	second, err := suite.catalog.ListRecords(ctx, filter)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 1, second.Total)
	require.Equal(suite.T(), int32(4), second.Records[0].Qty)
}

func (suite *OrderLifecycleTestSuite) TestCatalogMutationsInvalidateCache() {
	ctx := context.Background()

	suite.seedRecord("rec-mut-a", 2, 40000)
	suite.seedRecord("rec-mut-b", 2, 45000)

	filter := domain.RecordFilter{Category: "rock"}

	first, err := suite.catalog.ListRecords(ctx, filter)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 2, first.Total)

	// Удаление записи сбрасывает кэш: выборка сразу видит изменение.
	require.NoError(suite.T(), suite.catalog.DeleteRecord(ctx, "rec-mut-b"))

	second, err := suite.catalog.ListRecords(ctx, filter)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 1, second.Total)
	require.Equal(suite.T(), "rec-mut-a", second.Records[0].ID)
}

func (suite *OrderLifecycleTestSuite) TestTracklistEnrichmentFlow() {
	ctx := context.Background()

	record := suite.seedRecord("rec-tracks", 3, 260000)

	suite.tracklists.Tracks = []domain.Track{
		{Position: 1, Title: "Иванов", DurationSec: 223},
		{Position: 2, Title: "Великий дворник", DurationSec: 257},
	}

	enriched, err := suite.catalog.EnrichTracklist(ctx, record.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), enriched.Tracklist, 2)
	require.Equal(suite.T(), 1, suite.tracklists.FetchCalls)
	require.Equal(suite.T(), "ref-rec-tracks", suite.tracklists.LastRef)

	// Версия выросла, треки сохранены.
	loaded, err := suite.catalog.GetRecord(ctx, record.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), enriched.Version, loaded.Version)
	require.Equal(suite.T(), "Великий дворник", loaded.Tracklist[1].Title)

	// Провал внешнего каталога не трогает сохранённый tracklist.
	suite.tracklists.FetchErr = domain.ErrTracklistUnavailable
	_, err = suite.catalog.EnrichTracklist(ctx, record.ID)
	require.ErrorIs(suite.T(), err, domain.ErrTracklistUnavailable)

	unchanged, err := suite.catalog.GetRecord(ctx, record.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), unchanged.Tracklist, 2)
}

func (suite *OrderLifecycleTestSuite) TestOrderForMissingRecord() {
	ctx := context.Background()

	_, err := suite.coordinator.Create(ctx, "rec-ghost", 1)
	require.Error(suite.T(), err)
	require.True(suite.T(), domain.IsNotFound(err))

	// Невалидные аргументы отклоняются до обращения к хранилищу.
	_, err = suite.coordinator.Create(ctx, "", 1)
	require.ErrorIs(suite.T(), err, domain.ErrRecordIDRequired)

	record := suite.seedRecord("rec-zero", 5, 30000)
	_, err = suite.coordinator.Create(ctx, record.ID, 0)
	require.ErrorIs(suite.T(), err, domain.ErrOrderQtyInvalid)
}

// pendingEventTypes собирает типы событий, накопленных в outbox.
func (suite *OrderLifecycleTestSuite) pendingEventTypes() []string {
	messages, err := suite.outbox.PullPending(100)
	require.NoError(suite.T(), err)

	types := make([]string, 0, len(messages))
	for _, msg := range messages {
		types = append(types, msg.EventType)
	}
	return types
}

func TestOrderLifecycle(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
