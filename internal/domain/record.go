package domain

import "time"

// Track описывает одну дорожку в tracklist пластинки.
type Track struct {
	// Position — порядковый номер дорожки на носителе, начиная с 1.
	Position int32
	// Title — название дорожки.
	Title string
	// DurationSec — длительность в секундах; 0 означает «неизвестно».
	DurationSec int32
}

// Record агрегирует каталожную карточку пластинки вместе с остатком на складе.
type Record struct {
	ID     string
	Artist string
	Album  string
	// PriceMinor — цена в минимальных денежных единицах (например, копейки).
	PriceMinor int64
	// Qty — остаток на складе; инвариант: никогда не уходит в минус.
	Qty      int32
	Format   string
	Category string
	// ExternalRef — идентификатор релиза во внешнем каталоге (для обогащения tracklist).
	ExternalRef string
	Tracklist   []Track
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// DeletedAt — tombstone мягкого удаления; запись с ненулевым значением
	// исключается из всех чтений и складских операций.
	DeletedAt *time.Time
}

// Deleted сообщает, помечена ли запись как удалённая.
func (r *Record) Deleted() bool {
	return r.DeletedAt != nil
}

// ValidateInvariants проверяет базовые инварианты карточки и возвращает список замечаний.
func (r *Record) ValidateInvariants() []error {
	var errs []error

	if r.Artist == "" {
		errs = append(errs, ErrArtistRequired)
	}
	if r.Album == "" {
		errs = append(errs, ErrAlbumRequired)
	}
	if r.PriceMinor < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if r.Qty < 0 {
		errs = append(errs, ErrQtyNegative)
	}

	for _, track := range r.Tracklist {
		if track.Position <= 0 {
			errs = append(errs, ErrTrackPositionInvalid)
		}
		if track.Title == "" {
			errs = append(errs, ErrTrackTitleRequired)
		}
	}

	return errs
}
