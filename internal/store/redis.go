package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cartsync/cart-engine/internal/model"
)

// RedisCommands is the subset of redis.Client commands the cache uses.
// *redis.Client satisfies it.
type RedisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and update or invalidate the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     RedisCommands
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb RedisCommands, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) Put(ctx context.Context, cart *model.Cart) error {
	if err := s.primary.Put(ctx, cart); err != nil {
		return err
	}
	s.cacheCart(ctx, cart)
	s.rdb.Set(ctx, ownerKeyOf(cart.OwnerKey), strconv.FormatInt(cart.ID, 10), s.ttl)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, id int64) error {
	// Read owner before deleting so the owner mapping can be dropped too.
	var ownerKey int64
	if c, err := s.primary.Get(ctx, id); err == nil {
		ownerKey = c.OwnerKey
	}

	if err := s.primary.Delete(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, cartKeyOf(id))
	if ownerKey != 0 {
		s.rdb.Del(ctx, ownerKeyOf(ownerKey))
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) Get(ctx context.Context, id int64) (*model.Cart, error) {
	data, err := s.rdb.Get(ctx, cartKeyOf(id)).Bytes()
	if err == nil {
		var c model.Cart
		if json.Unmarshal(data, &c) == nil {
			return &c, nil
		}
	}

	// Cache miss: read from primary.
	c, err := s.primary.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheCart(ctx, c)
	return c, nil
}

func (s *CachedStore) GetByOwner(ctx context.Context, ownerKey int64) (*model.Cart, error) {
	// Try cache via owner→cartID mapping. A mapping pointing at a cart
	// the primary no longer has is stale, not proof of absence, so any
	// failure on this path falls through to the primary lookup.
	idStr, err := s.rdb.Get(ctx, ownerKeyOf(ownerKey)).Result()
	if err == nil {
		if id, perr := strconv.ParseInt(idStr, 10, 64); perr == nil {
			if c, gerr := s.Get(ctx, id); gerr == nil {
				return c, nil
			}
			s.rdb.Del(ctx, ownerKeyOf(ownerKey))
		}
	}

	// Cache miss.
	c, err := s.primary.GetByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}

	// Cache both the cart and the owner→id mapping.
	s.cacheCart(ctx, c)
	s.rdb.Set(ctx, ownerKeyOf(ownerKey), strconv.FormatInt(c.ID, 10), s.ttl)
	return c, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListAll(ctx context.Context) ([]model.Cart, error) {
	return s.primary.ListAll(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheCart(ctx context.Context, c *model.Cart) {
	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, cartKeyOf(c.ID), data, s.ttl)
	}
}

func cartKeyOf(id int64) string        { return fmt.Sprintf("cart:%d", id) }
func ownerKeyOf(ownerKey int64) string { return fmt.Sprintf("cart_owner:%d", ownerKey) }
