package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cartsync/cart-engine/internal/gateway"
	"github.com/cartsync/cart-engine/internal/model"
	"github.com/cartsync/cart-engine/internal/store"
)

// Filter restricts the all-carts listing by provenance.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterLocalOnly  Filter = "local"
	FilterRemoteOnly Filter = "remote"
)

// ParseFilter maps a query value to a Filter, defaulting to all.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case FilterAll, "":
		return FilterAll, nil
	case FilterLocalOnly:
		return FilterLocalOnly, nil
	case FilterRemoteOnly:
		return FilterRemoteOnly, nil
	default:
		return "", fmt.Errorf("unknown filter %q", s)
	}
}

// Source tags where a listed cart came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// ListedCart is one entry of the merged listing, tagged with provenance.
type ListedCart struct {
	model.Cart
	Source Source `json:"source"`
}

// MergeStrategy decides which version wins when both sources hold the
// same cart id. The aggregator's traversal is strategy-agnostic, so the
// precedence policy can change without touching it.
type MergeStrategy interface {
	Choose(local, remote *model.Cart) Source
}

// LocalWins always prefers the durable-store version. The default: local
// state reflects mutations the read-only demo backend never saw.
type LocalWins struct{}

func (LocalWins) Choose(*model.Cart, *model.Cart) Source { return SourceLocal }

// RemoteWins always prefers the remote version.
type RemoteWins struct{}

func (RemoteWins) Choose(*model.Cart, *model.Cart) Source { return SourceRemote }

// MostRecent prefers the version with the later UpdatedAt, local on ties.
// Remote carts carry no timestamp from the demo backend, so in practice
// this degrades to local-wins there.
type MostRecent struct{}

func (MostRecent) Choose(local, remote *model.Cart) Source {
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return SourceRemote
	}
	return SourceLocal
}

// DeleteOutcome reports where a cart was deleted from.
type DeleteOutcome struct {
	CartID int64  `json:"cart_id"`
	Source Source `json:"source"`
}

// Aggregator builds the deduplicated cross-owner cart listing from the
// durable store and the remote full listing, and routes cart deletion to
// whichever source holds the record.
type Aggregator struct {
	store    store.Store
	remote   Remote
	strategy MergeStrategy
}

// NewAggregator creates an aggregator. A nil strategy means LocalWins.
func NewAggregator(st store.Store, remote Remote, strategy MergeStrategy) *Aggregator {
	if strategy == nil {
		strategy = LocalWins{}
	}
	return &Aggregator{store: st, remote: remote, strategy: strategy}
}

// ListAll merges both sources: an id present in both is reported once,
// the winner picked by the strategy. Result is sorted by cart id
// descending. Remote outage degrades to the local set (logged) so the
// listing stays available.
func (a *Aggregator) ListAll(ctx context.Context, filter Filter) ([]ListedCart, error) {
	local, err := a.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	remote, err := a.remote.ListAll(ctx)
	if err != nil {
		slog.Warn("remote listing unavailable, serving local carts only", "err", err)
		remote = nil
	}

	localByID := make(map[int64]*model.Cart, len(local))
	for i := range local {
		localByID[local[i].ID] = &local[i]
	}
	remoteByID := make(map[int64]*model.Cart, len(remote))
	for i := range remote {
		remoteByID[remote[i].ID] = &remote[i]
	}

	merged := make([]ListedCart, 0, len(local)+len(remote))
	for i := range local {
		c := &local[i]
		src := SourceLocal
		if r, ok := remoteByID[c.ID]; ok {
			if a.strategy.Choose(c, r) == SourceRemote {
				c = r
				src = SourceRemote
			}
		}
		merged = append(merged, ListedCart{Cart: *c.Clone(), Source: src})
	}
	for i := range remote {
		c := &remote[i]
		if _, ok := localByID[c.ID]; ok {
			continue // already reported under the merge rule
		}
		merged = append(merged, ListedCart{Cart: *c.Clone(), Source: SourceRemote})
	}

	switch filter {
	case FilterLocalOnly:
		merged = keep(merged, func(lc ListedCart) bool {
			_, ok := localByID[lc.ID]
			return ok
		})
	case FilterRemoteOnly:
		merged = keep(merged, func(lc ListedCart) bool {
			_, inLocal := localByID[lc.ID]
			_, inRemote := remoteByID[lc.ID]
			return inRemote && !inLocal
		})
	}

	// Highest id first; ids are unique across the merged set.
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID > merged[j].ID })
	return merged, nil
}

// DeleteCart deletes from the durable store when the id is held locally;
// otherwise it attempts the remote delete and surfaces that outcome
// distinctly. A read-only remote yields ErrUnsupportedOperation; an id
// neither source knows yields ErrNotFound.
func (a *Aggregator) DeleteCart(ctx context.Context, cartID int64) (*DeleteOutcome, error) {
	err := a.store.Delete(ctx, cartID)
	switch {
	case err == nil:
		slog.Info("local cart deleted", "cart_id", cartID)
		return &DeleteOutcome{CartID: cartID, Source: SourceLocal}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	err = a.remote.Delete(ctx, cartID)
	switch {
	case err == nil:
		slog.Info("remote cart deleted", "cart_id", cartID)
		return &DeleteOutcome{CartID: cartID, Source: SourceRemote}, nil
	case errors.Is(err, gateway.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, gateway.ErrUnsupported):
		return nil, fmt.Errorf("%w: delete cart %d", ErrUnsupportedOperation, cartID)
	default:
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
}

func keep(in []ListedCart, pred func(ListedCart) bool) []ListedCart {
	out := in[:0]
	for _, lc := range in {
		if pred(lc) {
			out = append(out, lc)
		}
	}
	return out
}
