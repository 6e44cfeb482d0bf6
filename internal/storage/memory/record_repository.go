package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
)

// recordRepositoryInMemory — in-memory реализация RecordRepository.
// Атомарность AdjustStock обеспечивается mutex'ом: проверка условия и
// декремент выполняются под одним lock, что эквивалентно условному
// обновлению на уровне хранилища в пределах одного процесса.
type recordRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Record
}

// NewRecordRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewRecordRepository() domain.RecordRepository {
	return &recordRepositoryInMemory{
		items: make(map[string]domain.Record),
	}
}

// Create сохраняет новую карточку, если ID ещё не занят.
func (r *recordRepositoryInMemory) Create(_ context.Context, record domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[record.ID]; exists {
		return domain.ErrRecordVersionConflict
	}
	r.items[record.ID] = cloneRecord(record)
	return nil
}

// Get возвращает карточку или ErrRecordNotFound, если её нет либо она удалена.
func (r *recordRepositoryInMemory) Get(_ context.Context, id string) (domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.items[id]
	if !ok || record.Deleted() {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return cloneRecord(record), nil
}

// List возвращает страницу по фильтру и общее число совпадений (без tombstone).
func (r *recordRepositoryInMemory) List(_ context.Context, filter domain.RecordFilter) ([]domain.Record, int, error) {
	filter = filter.Normalize()

	r.mu.RLock()
	matched := make([]domain.Record, 0, len(r.items))
	for _, record := range r.items {
		if record.Deleted() {
			continue
		}
		if !filter.Matches(record) {
			continue
		}
		matched = append(matched, cloneRecord(record))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if filter.Offset >= total {
		return []domain.Record{}, total, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

// Update перезаписывает карточку, проверяя версию (optimistic locking).
// Остаток при этом берётся из переданной карточки: конкурентное изменение
// qty через AdjustStock поднимет версию и вызов завершится конфликтом.
func (r *recordRepositoryInMemory) Update(_ context.Context, record domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[record.ID]
	if !ok || current.Deleted() {
		return domain.ErrRecordNotFound
	}
	if current.Version != record.Version {
		return domain.ErrRecordVersionConflict
	}
	record.Version++
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = time.Now().UTC()
	r.items[record.ID] = cloneRecord(record)
	return nil
}

// Delete помечает карточку tombstone. Повторное удаление — ErrRecordNotFound.
func (r *recordRepositoryInMemory) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok || current.Deleted() {
		return domain.ErrRecordNotFound
	}
	now := time.Now().UTC()
	current.DeletedAt = &now
	current.Version++
	current.UpdatedAt = now
	r.items[id] = current
	return nil
}

// AdjustStock атомарно меняет остаток при условии qty+delta >= 0.
func (r *recordRepositoryInMemory) AdjustStock(_ context.Context, id string, delta int32) (domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok || current.Deleted() {
		return domain.Record{}, domain.ErrRecordNotFound
	}

	newQty := current.Qty + delta
	if newQty < 0 {
		return domain.Record{}, domain.ErrInsufficientStock
	}

	current.Qty = newQty
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	r.items[id] = current
	return cloneRecord(current), nil
}

// cloneRecord копирует карточку вместе с tracklist, чтобы избежать
// непредсказуемых мутаций извне.
func cloneRecord(record domain.Record) domain.Record {
	if record.Tracklist != nil {
		tracks := make([]domain.Track, len(record.Tracklist))
		copy(tracks, record.Tracklist)
		record.Tracklist = tracks
	}
	if record.DeletedAt != nil {
		deletedAt := *record.DeletedAt
		record.DeletedAt = &deletedAt
	}
	return record
}

var _ domain.RecordRepository = (*recordRepositoryInMemory)(nil)
