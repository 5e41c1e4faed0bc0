// Package cart provides the reconciliation engine, the all-carts
// aggregator, and the HTTP handlers of the command surface.
//
// The engine reconciles two disagreeing sources of truth — the remote
// cart service and the local durable store — into one current cart per
// owner, and recomputes every derived aggregate on every mutation.
// All monetary values use shopspring/decimal — never float64 for money.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cartsync/cart-engine/internal/aggregate"
	"github.com/cartsync/cart-engine/internal/gateway"
	"github.com/cartsync/cart-engine/internal/identity"
	"github.com/cartsync/cart-engine/internal/metrics"
	"github.com/cartsync/cart-engine/internal/model"
	"github.com/cartsync/cart-engine/internal/store"
)

// Remote is the slice of the gateway the engine and aggregator consume.
type Remote interface {
	ListAll(ctx context.Context) ([]model.Cart, error)
	GetByOwner(ctx context.Context, ownerKey int64) (*model.Cart, error)
	Delete(ctx context.Context, cartID int64) error
}

// SessionState is the per-session resolution state.
type SessionState int

const (
	StateUnresolved SessionState = iota
	StateResolving
	StateReady
)

func (s SessionState) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateReady:
		return "ready"
	default:
		return "unresolved"
	}
}

// Session owns the current cart for one resolved owner. It is an explicit
// handle passed into every engine call, never ambient state. A session's
// mutex serializes operations for its owner; sessions for different
// owners share nothing mutable.
type Session struct {
	mu       sync.Mutex
	identity int64
	ownerKey int64
	hasOwner bool
	state    SessionState
	cart     *model.Cart // nil = no current cart
}

// OwnerKey returns the bounded owner key, or 0 when no identity is set.
func (s *Session) OwnerKey() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerKey
}

// State returns the session's resolution state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns a copy of the current cart, or nil when absent.
func (s *Session) Current() *model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Engine applies cart mutations for resolved sessions. Mutations are
// all-or-nothing: aggregates are recomputed on a private copy, the copy is
// persisted, and only then does it become the session's current cart. A
// failed persist leaves no observable state change.
type Engine struct {
	store  store.Store
	remote Remote
	ids    IDAllocator
	prices PriceResolver
	hub    *Hub // optional broadcast hub
}

// NewEngine creates an engine. Pass nil for hub if broadcasting is not
// needed.
func NewEngine(st store.Store, remote Remote, ids IDAllocator, prices PriceResolver, hub *Hub) *Engine {
	return &Engine{
		store:  st,
		remote: remote,
		ids:    ids,
		prices: prices,
		hub:    hub,
	}
}

// NewSession creates an unresolved session with no identity.
func (e *Engine) NewSession() *Session {
	metrics.ActiveSessions.Inc()
	return &Session{state: StateUnresolved}
}

// CloseSession releases the session's slot in the metrics gauge.
func (e *Engine) CloseSession(*Session) {
	metrics.ActiveSessions.Dec()
}

// SetIdentity binds an external identity to the session and resolves the
// owner's cart. On transition to absent it clears the session's view
// without touching any durable record. The raw identity is passed in;
// the engine applies the owner-key bounding exactly once.
func (e *Engine) SetIdentity(ctx context.Context, s *Session, id int64, present bool) error {
	s.mu.Lock()
	if !present {
		s.identity = 0
		s.ownerKey = 0
		s.hasOwner = false
		s.cart = nil
		s.state = StateUnresolved
		s.mu.Unlock()
		slog.Info("session identity cleared")
		return nil
	}
	s.identity = id
	s.ownerKey = identity.OwnerKeyOf(id)
	s.hasOwner = true
	s.state = StateUnresolved
	s.mu.Unlock()

	return e.Resolve(ctx, s)
}

// Watch subscribes the session to an identity provider: the session
// re-resolves on every identity change, including sign-out. The provider's
// current identity is applied immediately.
func (e *Engine) Watch(ctx context.Context, s *Session, p identity.Provider) error {
	p.Subscribe(func(id int64, present bool) {
		if err := e.SetIdentity(context.Background(), s, id, present); err != nil {
			slog.Error("identity change resolve failed", "err", err)
		}
	})
	id, present := p.Current()
	return e.SetIdentity(ctx, s, id, present)
}

// Resolve loads the session's current cart: the durable store wins; a
// remote cart is adopted (and persisted) only when no durable record
// exists. Idempotent: resolving twice with no intervening mutation
// yields identical state. Gateway failure degrades to "no current cart"
// rather than blocking the session.
func (e *Engine) Resolve(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.resolveLocked(ctx, s)
}

func (e *Engine) resolveLocked(ctx context.Context, s *Session) error {
	if !s.hasOwner {
		s.cart = nil
		s.state = StateReady
		return nil
	}

	s.state = StateResolving

	local, err := e.store.GetByOwner(ctx, s.ownerKey)
	switch {
	case err == nil:
		s.cart = local
		s.state = StateReady
		metrics.ResolvesTotal.WithLabelValues("local").Inc()
		slog.Info("cart resolved from durable store",
			"owner_key", s.ownerKey, "cart_id", local.ID)
		return nil
	case !errors.Is(err, store.ErrNotFound):
		s.state = StateUnresolved
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	remote, err := e.remote.GetByOwner(ctx, s.ownerKey)
	switch {
	case err == nil:
		// Adopt wholesale, never merged field-by-field, and persist a
		// copy so the durable store becomes the record from here on.
		adopted := remote.Clone()
		aggregate.Apply(adopted)
		adopted.UpdatedAt = time.Now().UTC()
		if perr := e.store.Put(ctx, adopted); perr != nil {
			s.state = StateUnresolved
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, perr)
		}
		s.cart = adopted
		s.state = StateReady
		metrics.ResolvesTotal.WithLabelValues("remote").Inc()
		slog.Info("cart adopted from remote",
			"owner_key", s.ownerKey, "cart_id", adopted.ID)
		return nil
	case errors.Is(err, gateway.ErrNotFound):
		s.cart = nil
		s.state = StateReady
		metrics.ResolvesTotal.WithLabelValues("none").Inc()
		return nil
	default:
		// Degrade gracefully: remote outage must not block the session.
		s.cart = nil
		s.state = StateReady
		metrics.ResolvesTotal.WithLabelValues("degraded").Inc()
		slog.Warn("remote gateway unavailable during resolve, degrading to empty cart",
			"owner_key", s.ownerKey, "err", err)
		return nil
	}
}

// Refresh re-runs resolution unconditionally, re-reading the durable
// store and, absent a durable record, the remote source.
func (e *Engine) Refresh(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUnresolved
	return e.resolveLocked(ctx, s)
}

// AddItem adds quantity of productID to the current cart, creating the
// cart first if the owner has none. An existing line's quantity is
// incremented at its existing unit price; a new line is priced through
// the PriceResolver. Returns the updated cart.
func (e *Engine) AddItem(ctx context.Context, s *Session, productID, quantity int64) (*model.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be >= 1, got %d", quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasOwner {
		return nil, ErrNoOwner
	}
	if err := e.ensureReadyLocked(ctx, s); err != nil {
		return nil, err
	}

	var next *model.Cart
	if s.cart != nil {
		next = s.cart.Clone()
	} else {
		next = &model.Cart{
			ID:       e.ids.Next(),
			OwnerKey: s.ownerKey,
			Items:    []model.LineItem{},
		}
	}

	if i := next.Find(productID); i >= 0 {
		next.Items[i].Quantity += quantity
	} else {
		info := e.prices.Resolve(ctx, productID)
		next.Items = append(next.Items, model.LineItem{
			ProductID:    productID,
			Title:        info.Title,
			Quantity:     quantity,
			UnitPrice:    info.UnitPrice,
			ThumbnailRef: info.ThumbnailRef,
		})
	}

	if err := e.commitLocked(ctx, s, next); err != nil {
		return nil, err
	}

	metrics.MutationsTotal.WithLabelValues("add").Inc()
	slog.Info("item added",
		"owner_key", s.ownerKey, "cart_id", next.ID,
		"product_id", productID, "quantity", quantity,
		"total", next.Total.String())
	return next.Clone(), nil
}

// RemoveItem removes the line for productID. Removing an absent line is a
// no-op, not an error. A cart left with zero items stays in the store;
// only an explicit Clear deletes the record.
func (e *Engine) RemoveItem(ctx context.Context, s *Session, productID int64) (*model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasOwner {
		return nil, ErrNoOwner
	}
	if err := e.ensureReadyLocked(ctx, s); err != nil {
		return nil, err
	}
	if s.cart == nil {
		return nil, nil
	}

	i := s.cart.Find(productID)
	if i < 0 {
		return s.cart.Clone(), nil
	}

	next := s.cart.Clone()
	next.Items = append(next.Items[:i], next.Items[i+1:]...)

	if err := e.commitLocked(ctx, s, next); err != nil {
		return nil, err
	}

	metrics.MutationsTotal.WithLabelValues("remove").Inc()
	slog.Info("item removed",
		"owner_key", s.ownerKey, "cart_id", next.ID, "product_id", productID)
	return next.Clone(), nil
}

// UpdateQuantity sets the line's quantity. Quantity < 1 behaves exactly
// like RemoveItem. With no current cart or an absent product the call is
// a silent no-op: stale presentation state must not produce spurious
// errors.
func (e *Engine) UpdateQuantity(ctx context.Context, s *Session, productID, quantity int64) (*model.Cart, error) {
	if quantity < 1 {
		return e.RemoveItem(ctx, s, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasOwner {
		return nil, ErrNoOwner
	}
	if err := e.ensureReadyLocked(ctx, s); err != nil {
		return nil, err
	}
	if s.cart == nil {
		return nil, nil
	}

	i := s.cart.Find(productID)
	if i < 0 {
		return s.cart.Clone(), nil
	}

	next := s.cart.Clone()
	next.Items[i].Quantity = quantity

	if err := e.commitLocked(ctx, s, next); err != nil {
		return nil, err
	}

	metrics.MutationsTotal.WithLabelValues("update").Inc()
	slog.Info("quantity updated",
		"owner_key", s.ownerKey, "cart_id", next.ID,
		"product_id", productID, "quantity", quantity)
	return next.Clone(), nil
}

// Clear deletes the current cart from the durable store and drops it from
// the session entirely; current cart becomes absent, not empty-with-id.
// No-op if no current cart exists.
func (e *Engine) Clear(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasOwner {
		return ErrNoOwner
	}
	if err := e.ensureReadyLocked(ctx, s); err != nil {
		return err
	}
	if s.cart == nil {
		return nil
	}

	cartID := s.cart.ID
	if err := e.store.Delete(ctx, cartID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.cart = nil

	metrics.MutationsTotal.WithLabelValues("clear").Inc()
	slog.Info("cart cleared", "owner_key", s.ownerKey, "cart_id", cartID)

	if e.hub != nil {
		e.hub.Broadcast(Event{
			Type:     EventCartCleared,
			CartID:   cartID,
			OwnerKey: s.ownerKey,
		})
	}
	return nil
}

// ensureReadyLocked resolves lazily for sessions that have an owner but
// were never resolved. Resolve is idempotent, so this is safe to repeat.
func (e *Engine) ensureReadyLocked(ctx context.Context, s *Session) error {
	if s.state == StateReady {
		return nil
	}
	return e.resolveLocked(ctx, s)
}

// commitLocked recomputes aggregates on the candidate cart, persists it,
// and only then installs it as the session's current cart. The durable
// write happens strictly after aggregates are consistent, so an
// inconsistent record can never be observed.
func (e *Engine) commitLocked(ctx context.Context, s *Session, next *model.Cart) error {
	aggregate.Apply(next)
	next.UpdatedAt = time.Now().UTC()

	if err := e.store.Put(ctx, next); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.cart = next

	if e.hub != nil {
		e.hub.Broadcast(Event{
			Type:          EventCartUpdated,
			CartID:        next.ID,
			OwnerKey:      next.OwnerKey,
			Total:         next.Total.String(),
			ItemKindCount: next.ItemKindCount,
			TotalQuantity: next.TotalQuantity,
		})
	}
	return nil
}
