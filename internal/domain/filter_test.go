package domain

import (
	"strings"
	"testing"
)

func TestRecordFilterNormalize(t *testing.T) {
	f := RecordFilter{}.Normalize()
	if f.Limit != DefaultListLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultListLimit, f.Limit)
	}
	if f.Offset != 0 {
		t.Fatalf("expected offset 0, got %d", f.Offset)
	}

	f = RecordFilter{Limit: 10000, Offset: -5}.Normalize()
	if f.Limit != MaxListLimit {
		t.Fatalf("expected clamp to %d, got %d", MaxListLimit, f.Limit)
	}
	if f.Offset != 0 {
		t.Fatalf("expected offset clamp to 0, got %d", f.Offset)
	}
}

func TestRecordFilterCacheKey_Canonical(t *testing.T) {
	a := RecordFilter{Artist: "Miles Davis", Format: "LP", Limit: 20}
	b := RecordFilter{Artist: "Miles Davis", Format: "LP", Limit: 20}
	if a.CacheKey() != b.CacheKey() {
		t.Fatalf("identical filters must share a key: %q vs %q", a.CacheKey(), b.CacheKey())
	}

	c := RecordFilter{Artist: "Miles Davis", Format: "LP", Limit: 20, Offset: 20}
	if a.CacheKey() == c.CacheKey() {
		t.Fatal("different pagination must produce a different key")
	}
}

func TestRecordFilterCacheKey_EscapesSeparators(t *testing.T) {
	f := RecordFilter{Artist: "a=b&c", Limit: 20}
	key := f.CacheKey()
	// Разделители внутри значения не должны ломать канонический формат.
	if strings.Count(key, "&") != 6 {
		t.Fatalf("expected 6 field separators, got %d in %q", strings.Count(key, "&"), key)
	}
}

func TestRecordFilterMatches(t *testing.T) {
	rec := Record{Artist: "Miles Davis", Album: "Kind of Blue", Format: "LP", Category: "jazz"}

	cases := []struct {
		name   string
		filter RecordFilter
		want   bool
	}{
		{"empty filter matches", RecordFilter{}, true},
		{"artist case-insensitive", RecordFilter{Artist: "miles davis"}, true},
		{"artist mismatch", RecordFilter{Artist: "Coltrane"}, false},
		{"format match", RecordFilter{Format: "lp"}, true},
		{"query over album", RecordFilter{Query: "blue"}, true},
		{"query over artist", RecordFilter{Query: "MILES"}, true},
		{"query mismatch", RecordFilter{Query: "funk"}, false},
		{"combined", RecordFilter{Artist: "Miles Davis", Category: "jazz"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(rec); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}
