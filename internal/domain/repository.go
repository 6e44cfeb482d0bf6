package domain

import "context"

// RecordRepository описывает требования к хранилищу каталога.
// Все методы чтения и складских операций игнорируют записи с tombstone.
type RecordRepository interface {
	// Create сохраняет новую карточку. Возвращает ошибку, если ID уже занят.
	Create(ctx context.Context, record Record) error
	// Get возвращает карточку по идентификатору или ErrRecordNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// List возвращает страницу карточек по фильтру и общее число совпадений.
	List(ctx context.Context, filter RecordFilter) ([]Record, int, error)
	// Update применяет изменения к карточке с учётом optimistic locking.
	Update(ctx context.Context, record Record) error
	// Delete помечает карточку tombstone. Повторное удаление — ErrRecordNotFound.
	Delete(ctx context.Context, id string) error
	// AdjustStock атомарно меняет остаток на delta при условии qty+delta >= 0.
	// Проверка и изменение неделимы на уровне хранилища: два конкурентных
	// вызова за последние единицы не могут оба пройти. Возвращает карточку
	// после изменения, ErrInsufficientStock при провале условия или
	// ErrRecordNotFound, если записи нет либо она удалена.
	AdjustStock(ctx context.Context, id string, delta int32) (Record, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Insert сохраняет новый заказ. Возвращает ошибку хранилища при провале.
	Insert(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByRecord возвращает заказы по пластинке с опциональным лимитом.
	ListByRecord(ctx context.Context, recordID string, limit int) ([]Order, error)
}
