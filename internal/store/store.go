// Package store defines the durable cart store for the engine.
// Implementations include PostgreSQL (source of record), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/cartsync/cart-engine/internal/model"
)

// ErrNotFound is returned when no cart record matches the lookup.
// Absence is an expected outcome; callers distinguish it from
// ErrUnavailable with errors.Is.
var ErrNotFound = errors.New("store: cart not found")

// ErrUnavailable wraps failures of the underlying medium so callers can
// tell a store outage apart from absence.
var ErrUnavailable = errors.New("store: unavailable")

// Store is the durable cart persistence interface. The engine writes a
// cart only after its aggregates have been recomputed; implementations
// persist the record as given, as a unit.
type Store interface {
	// Get retrieves a cart by id.
	Get(ctx context.Context, id int64) (*model.Cart, error)

	// GetByOwner retrieves the cart owned by ownerKey.
	GetByOwner(ctx context.Context, ownerKey int64) (*model.Cart, error)

	// Put inserts or replaces a cart record.
	Put(ctx context.Context, cart *model.Cart) error

	// Delete removes a cart record. Deleting an absent id returns
	// ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// ListAll returns every cart record.
	ListAll(ctx context.Context) ([]model.Cart, error)
}
