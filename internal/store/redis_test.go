package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cartsync/cart-engine/internal/model"
)

// fakeRedis implements RedisCommands over a plain map.
type fakeRedis struct {
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case string:
		f.data[key] = v
	case []byte:
		f.data[key] = string(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestCachedGetByOwner_ReadThrough(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	primary := NewMemoryStore()
	cs := NewCachedStore(primary, rdb, time.Minute)

	want := &model.Cart{ID: 5, OwnerKey: 3, Total: decimal.NewFromInt(10)}
	if err := primary.Put(ctx, want); err != nil {
		t.Fatal(err)
	}

	got, err := cs.GetByOwner(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 5 {
		t.Errorf("cart id = %d, want 5", got.ID)
	}
	if _, ok := rdb.data[ownerKeyOf(3)]; !ok {
		t.Error("read-through should populate the owner mapping")
	}
	if _, ok := rdb.data[cartKeyOf(5)]; !ok {
		t.Error("read-through should populate the cart entry")
	}
}

func TestCachedGetByOwner_StaleMappingFallsThrough(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	primary := NewMemoryStore()
	cs := NewCachedStore(primary, rdb, time.Minute)

	// The mapping points at a cart the primary no longer has; the primary
	// holds the owner's real cart under a different id.
	rdb.data[ownerKeyOf(3)] = "5"
	live := &model.Cart{ID: 6, OwnerKey: 3}
	if err := primary.Put(ctx, live); err != nil {
		t.Fatal(err)
	}

	got, err := cs.GetByOwner(ctx, 3)
	if err != nil {
		t.Fatalf("stale mapping must not report absence: %v", err)
	}
	if got.ID != 6 {
		t.Errorf("cart id = %d, want 6", got.ID)
	}
	if rdb.data[ownerKeyOf(3)] != "6" {
		t.Errorf("owner mapping = %q, want refreshed to 6", rdb.data[ownerKeyOf(3)])
	}
}

func TestCachedDelete_InvalidatesBothKeys(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	primary := NewMemoryStore()
	cs := NewCachedStore(primary, rdb, time.Minute)

	c := &model.Cart{ID: 5, OwnerKey: 3}
	if err := cs.Put(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := cs.Delete(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if _, ok := rdb.data[cartKeyOf(5)]; ok {
		t.Error("cart entry should be invalidated on delete")
	}
	if _, ok := rdb.data[ownerKeyOf(3)]; ok {
		t.Error("owner mapping should be invalidated on delete")
	}
}
