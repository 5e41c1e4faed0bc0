// Package identity maps external user identities into the cart owner
// namespace and delivers identity-change notifications to the engine.
package identity

import "sync"

// OwnerKeyBound is the size of the remote demo service's valid owner
// range. Bounding is a boundary adaptation to that service, not a
// business rule: any external identity must land on an owner key the
// remote side can answer for.
const OwnerKeyBound = 30

// OwnerKeyOf maps an arbitrary external identity to an owner key in
// [1, OwnerKeyBound]. Deterministic and total: negative and zero inputs
// still land in range. Values already in range map to themselves, so
// accidental double-mapping is harmless. Callers must still pass the
// raw identity, never a key.
func OwnerKeyOf(id int64) int64 {
	m := id % OwnerKeyBound
	if m < 0 {
		m += OwnerKeyBound
	}
	if m == 0 {
		return OwnerKeyBound
	}
	return m
}

// Provider supplies the current external identity. Current returns
// (identity, true) when a user is signed in, (0, false) otherwise.
// Subscribe registers a callback invoked on every identity change,
// including the transition to absent.
type Provider interface {
	Current() (int64, bool)
	Subscribe(fn func(id int64, present bool))
}

// StaticProvider is a Provider backed by an explicit Set call. Used in
// the server wiring (the session endpoint sets the identity) and tests.
type StaticProvider struct {
	mu      sync.Mutex
	id      int64
	present bool
	subs    []func(id int64, present bool)
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

func (p *StaticProvider) Current() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id, p.present
}

func (p *StaticProvider) Subscribe(fn func(id int64, present bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// Set updates the identity and notifies subscribers. Passing present=false
// signals sign-out.
func (p *StaticProvider) Set(id int64, present bool) {
	p.mu.Lock()
	p.id = id
	p.present = present
	subs := make([]func(int64, bool), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(id, present)
	}
}
