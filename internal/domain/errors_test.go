package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsVersionConflict(t *testing.T) {
	if !IsVersionConflict(ErrRecordVersionConflict) {
		t.Fatal("expected direct sentinel to match")
	}
	if !IsVersionConflict(fmt.Errorf("save record: %w", ErrRecordVersionConflict)) {
		t.Fatal("expected wrapped sentinel to match")
	}
	if IsVersionConflict(errors.New("some other error")) {
		t.Fatal("unrelated error must not match")
	}
}

func TestIsInsufficientStock(t *testing.T) {
	if !IsInsufficientStock(fmt.Errorf("reserve: %w", ErrInsufficientStock)) {
		t.Fatal("expected wrapped sentinel to match")
	}
	if IsInsufficientStock(ErrRecordNotFound) {
		t.Fatal("not-found must not be treated as insufficient stock")
	}
}

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrRecordNotFound, true},
		{ErrOrderNotFound, true},
		{fmt.Errorf("get: %w", ErrRecordNotFound), true},
		{ErrInsufficientStock, false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsNotFound(tc.err); got != tc.want {
			t.Fatalf("IsNotFound(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
