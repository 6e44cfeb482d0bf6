package domain

import "time"

// Order фиксирует покупку: ссылка на пластинку, количество и снимок цены.
// Заказ создаётся координатором ровно один раз и после сохранения неизменяем;
// последующие изменения цены в каталоге на него не влияют.
type Order struct {
	ID       string
	RecordID string
	Qty      int32
	// PriceMinor — цена за единицу на момент создания заказа (снимок).
	PriceMinor int64
	CreatedAt  time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.RecordID == "" {
		errs = append(errs, ErrRecordIDRequired)
	}
	if o.Qty < 1 {
		errs = append(errs, ErrOrderQtyInvalid)
	}
	if o.PriceMinor < 0 {
		errs = append(errs, ErrPriceNegative)
	}

	return errs
}
