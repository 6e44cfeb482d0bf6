package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
	"github.com/vladislavdragonenkov/vinyl/internal/storage/memory"
)

func newOrder(id string) domain.Order {
	return domain.Order{
		ID:         id,
		RecordID:   "rec-1",
		Qty:        2,
		PriceMinor: 2500,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestOrderRepository_InsertGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	if err := repo.Insert(ctx, newOrder("order-1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	stored, err := repo.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.PriceMinor != 2500 || stored.Qty != 2 {
		t.Fatalf("unexpected order: %+v", stored)
	}
}

func TestOrderRepository_GetMissing(t *testing.T) {
	repo := memory.NewOrderRepository()

	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	if err := repo.Insert(ctx, newOrder("order-1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := repo.Insert(ctx, newOrder("order-1")); err == nil {
		t.Fatal("duplicate insert must fail")
	}
}

func TestOrderRepository_ListByRecord(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	for _, id := range []string{"order-1", "order-2"} {
		if err := repo.Insert(ctx, newOrder(id)); err != nil {
			t.Fatalf("insert %s failed: %v", id, err)
		}
	}
	other := newOrder("order-3")
	other.RecordID = "rec-2"
	if err := repo.Insert(ctx, other); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	orders, err := repo.ListByRecord(ctx, "rec-1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}

	orders, err = repo.ListByRecord(ctx, "rec-1", 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(orders))
	}
}
