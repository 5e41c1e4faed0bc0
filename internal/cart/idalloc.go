package cart

import (
	"context"
	"sync/atomic"

	"github.com/cartsync/cart-engine/internal/store"
)

// IDAllocator hands out ids for locally created carts. Injected into the
// engine so id generation is deterministic in tests. (The original design
// derived ids from the wall clock; a counter keeps them distinct and
// reproducible instead.)
type IDAllocator interface {
	Next() int64
}

// LocalIDBase is where locally allocated cart ids start. High above the
// remote demo service's id range so local and remote ids never collide.
const LocalIDBase = 10000

// SequenceAllocator is a monotonic counter allocator.
type SequenceAllocator struct {
	next atomic.Int64
}

// NewSequenceAllocator creates an allocator whose first Next() returns
// start + 1.
func NewSequenceAllocator(start int64) *SequenceAllocator {
	a := &SequenceAllocator{}
	a.next.Store(start)
	return a
}

func (a *SequenceAllocator) Next() int64 {
	return a.next.Add(1)
}

// NewSequenceAllocatorFromStore seeds an allocator past every id already
// in the durable store, with base as the floor. Survives restarts without
// a separate counter record.
func NewSequenceAllocatorFromStore(ctx context.Context, st store.Store, base int64) (*SequenceAllocator, error) {
	carts, err := st.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	start := base
	for i := range carts {
		if carts[i].ID > start {
			start = carts[i].ID
		}
	}
	return NewSequenceAllocator(start), nil
}
