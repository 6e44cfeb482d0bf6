// Пакет cache определяет контракт read-кэша перед каталожными выборками.
// Ключ — каноническая сериализация фильтра (domain.RecordFilter.CacheKey),
// значение — страница выборки вместе с общим числом совпадений.
package cache

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
)

// Entry — закэшированный результат одной выборки каталога.
// Опубликованная запись только читается; писатели заменяют или чистят
// записи целиком, поэтому читатель не видит частично записанных данных.
type Entry struct {
	Records []domain.Record `json:"records"`
	Total   int             `json:"total"`
}

// RecordCache — keyed-кэш с TTL и грубой инвалидацией.
// Инвалидация намеренно покрывает все ключи сразу: пространство фильтров
// комбинаторное, и точечная инвалидация не окупает свою сложность на фоне
// короткого TTL.
type RecordCache interface {
	// Get возвращает запись по ключу; второй результат false — промах.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Put публикует запись с ограниченным временем жизни.
	Put(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	// InvalidateAll сбрасывает все записи; вызывается после любой мутации каталога.
	InvalidateAll(ctx context.Context) error
}

// Invalidator — узкий срез RecordCache для компонентов, которым нужна
// только инвалидация (координатор заказов).
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}
