package domain

import "errors"

var (
	// Ошибка отсутствующего исполнителя в карточке.
	ErrArtistRequired = errors.New("artist is required")
	// Ошибка отсутствующего названия альбома.
	ErrAlbumRequired = errors.New("album is required")
	// Ошибка отрицательной цены.
	ErrPriceNegative = errors.New("price_minor must be non-negative")
	// Ошибка отрицательного остатка при создании/обновлении карточки.
	ErrQtyNegative = errors.New("qty must be non-negative")
	// Ошибка отсутствующего идентификатора пластинки в заказе/резерве.
	ErrRecordIDRequired = errors.New("record_id is required")
	// Ошибка при некорректном количестве в заказе (< 1).
	ErrOrderQtyInvalid = errors.New("order qty must be greater than zero")
	// Ошибка некорректной позиции дорожки (< 1).
	ErrTrackPositionInvalid = errors.New("track position must be greater than zero")
	// Ошибка отсутствующего названия дорожки.
	ErrTrackTitleRequired = errors.New("track title is required")
	// ErrRecordNotFound возвращается, если пластинки нет или она помечена удалённой.
	ErrRecordNotFound = errors.New("record not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInsufficientStock — бизнес-отказ: остатка недостаточно для резервирования.
	// Это ожидаемый результат, а не авария; остаток при этом не меняется.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrRecordVersionConflict сигнализирует о конфликте версий при сохранении карточки.
	ErrRecordVersionConflict = errors.New("record version conflict")
	// ErrExternalRefMissing — у карточки нет внешней ссылки для обогащения tracklist.
	ErrExternalRefMissing = errors.New("record has no external_ref")
	// ErrTracklistUnavailable — внешний каталог не вернул tracklist.
	ErrTracklistUnavailable = errors.New("tracklist unavailable")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой hash запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyKeyNotFound — ключ не найден в репозитории.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyHashMismatch — тот же ключ пришёл с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency request hash mismatch")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrRecordVersionConflict)
}

// IsInsufficientStock проверяет, является ли ошибка бизнес-отказом по остатку.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsNotFound проверяет, что ошибка означает отсутствие пластинки или заказа.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrOrderNotFound)
}
