package store

import (
	"context"
	"errors"
	"testing"

	"github.com/cartsync/cart-engine/internal/model"
)

func TestMemoryGetByOwner_HighestIDWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// Insert low then high, and high then low for a second owner, so the
	// result cannot depend on insertion or iteration order.
	for _, c := range []model.Cart{
		{ID: 3, OwnerKey: 4},
		{ID: 9, OwnerKey: 4},
		{ID: 12, OwnerKey: 6},
		{ID: 5, OwnerKey: 6},
	} {
		c := c
		if err := s.Put(ctx, &c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetByOwner(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 9 {
		t.Errorf("owner 4 cart id = %d, want 9", got.ID)
	}

	got, err = s.GetByOwner(ctx, 6)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 12 {
		t.Errorf("owner 6 cart id = %d, want 12", got.ID)
	}
}

func TestMemoryGetByOwner_Absent(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetByOwner(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
