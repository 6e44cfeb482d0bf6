package domain

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultListLimit применяется, когда клиент не задал limit.
	DefaultListLimit = 20
	// MaxListLimit ограничивает размер страницы сверху.
	MaxListLimit = 100
)

// RecordFilter описывает параметры выборки каталога.
// Пустое строковое поле означает «не фильтровать по этому атрибуту».
type RecordFilter struct {
	Artist   string
	Album    string
	Format   string
	Category string
	// Query — подстрочный поиск по artist и album без учёта регистра.
	Query  string
	Limit  int
	Offset int
}

// Normalize приводит пагинацию к допустимым границам.
func (f RecordFilter) Normalize() RecordFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// CacheKey возвращает каноническую сериализацию фильтра для ключа read-кэша.
// Порядок полей фиксирован, значения экранируются, поэтому один и тот же
// фильтр всегда даёт один и тот же ключ.
func (f RecordFilter) CacheKey() string {
	var b strings.Builder
	writeField := func(name, value string) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
		b.WriteByte('&')
	}

	writeField("artist", f.Artist)
	writeField("album", f.Album)
	writeField("format", f.Format)
	writeField("category", f.Category)
	writeField("q", f.Query)
	writeField("limit", strconv.Itoa(f.Limit))

	b.WriteString("offset=")
	b.WriteString(strconv.Itoa(f.Offset))
	return b.String()
}

// Matches проверяет карточку на соответствие фильтру (без учёта пагинации).
// Используется in-memory репозиторием; SQL-реализация строит эквивалентный WHERE.
func (f RecordFilter) Matches(r Record) bool {
	if f.Artist != "" && !strings.EqualFold(f.Artist, r.Artist) {
		return false
	}
	if f.Album != "" && !strings.EqualFold(f.Album, r.Album) {
		return false
	}
	if f.Format != "" && !strings.EqualFold(f.Format, r.Format) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(f.Category, r.Category) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(r.Artist), q) &&
			!strings.Contains(strings.ToLower(r.Album), q) {
			return false
		}
	}
	return true
}
