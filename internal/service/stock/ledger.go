// Пакет stock реализует складской ledger поверх атомарного условного
// обновления хранилища каталога. Гарантия «no oversell» целиком опирается
// на атомарность AdjustStock: ledger не держит собственных блокировок и
// потому корректен при нескольких конкурентных инстансах сервиса поверх
// общего хранилища.
package stock

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
)

// Ledger выполняет резервирование и возврат остатков.
type Ledger struct {
	records domain.RecordRepository
	logger  *log.Entry
}

// NewLedger создаёт ledger поверх репозитория каталога.
func NewLedger(records domain.RecordRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "stock-ledger")
	}
	return &Ledger{records: records, logger: logger}
}

// Reserve атомарно списывает qty единиц и возвращает карточку после списания.
// ErrInsufficientStock и ErrRecordNotFound — ожидаемые результаты, не аварии.
func (l *Ledger) Reserve(ctx context.Context, recordID string, qty int32) (domain.Record, error) {
	if recordID == "" {
		return domain.Record{}, domain.ErrRecordIDRequired
	}
	if qty < 1 {
		return domain.Record{}, domain.ErrOrderQtyInvalid
	}

	record, err := l.records.AdjustStock(ctx, recordID, -qty)
	if err != nil {
		if domain.IsInsufficientStock(err) || domain.IsNotFound(err) {
			return domain.Record{}, err
		}
		return domain.Record{}, fmt.Errorf("reserve stock: %w", err)
	}

	l.logger.WithFields(log.Fields{
		"record_id": recordID,
		"qty":       qty,
		"remaining": record.Qty,
	}).Debug("stock reserved")

	return record, nil
}

// Release безусловно возвращает qty единиц на склад. Используется только как
// компенсация; примитив не идемпотентен, поэтому вызывающая сторона обязана
// вызвать его не более одного раза на провалившееся резервирование.
func (l *Ledger) Release(ctx context.Context, recordID string, qty int32) (domain.Record, error) {
	if recordID == "" {
		return domain.Record{}, domain.ErrRecordIDRequired
	}
	if qty < 1 {
		return domain.Record{}, domain.ErrOrderQtyInvalid
	}

	record, err := l.records.AdjustStock(ctx, recordID, qty)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Record{}, err
		}
		return domain.Record{}, fmt.Errorf("release stock: %w", err)
	}

	l.logger.WithFields(log.Fields{
		"record_id": recordID,
		"qty":       qty,
		"remaining": record.Qty,
	}).Debug("stock released")

	return record, nil
}

var _ domain.StockLedger = (*Ledger)(nil)
