package store

import (
	"context"
	"sync"

	"github.com/cartsync/cart-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[int64]*model.Cart
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts: make(map[int64]*model.Cart),
	}
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) GetByOwner(_ context.Context, ownerKey int64) (*model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Highest id wins, matching the Postgres implementation's ordering.
	var best *model.Cart
	for _, c := range s.carts {
		if c.OwnerKey == ownerKey && (best == nil || c.ID > best.ID) {
			best = c
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, cart *model.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.carts[cart.ID] = cart.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.carts[id]; !ok {
		return ErrNotFound
	}
	delete(s.carts, id)
	return nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	carts := make([]model.Cart, 0, len(s.carts))
	for _, c := range s.carts {
		carts = append(carts, *c.Clone())
	}
	return carts, nil
}
