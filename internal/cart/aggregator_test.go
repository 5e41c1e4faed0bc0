package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cartsync/cart-engine/internal/gateway"
	"github.com/cartsync/cart-engine/internal/model"
	"github.com/cartsync/cart-engine/internal/store"
)

func newTestAggregator(t *testing.T, remote *fakeRemote, strategy MergeStrategy) (*Aggregator, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	return NewAggregator(ms, remote, strategy), ms
}

func put(t *testing.T, ms *store.MemoryStore, c model.Cart) {
	t.Helper()
	if err := ms.Put(context.Background(), &c); err != nil {
		t.Fatal(err)
	}
}

func ids(carts []ListedCart) []int64 {
	out := make([]int64, len(carts))
	for i := range carts {
		out[i] = carts[i].ID
	}
	return out
}

func TestListAll_MergesAndSortsDescending(t *testing.T) {
	remote := &fakeRemote{carts: []model.Cart{
		remoteCart(2, 11, line(1, 1, 5.00)),
		remoteCart(8, 12, line(2, 1, 9.99)),
	}}
	agg, ms := newTestAggregator(t, remote, nil)
	put(t, ms, remoteCart(5, 7, line(1, 2, 5.00)))

	got, err := agg.ListAll(context.Background(), FilterAll)
	if err != nil {
		t.Fatal(err)
	}

	want := []int64{8, 5, 2}
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("ids = %v, want %v", gotIDs, want)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("ids = %v, want %v", gotIDs, want)
		}
	}
}

func TestListAll_IDCollisionLocalWins(t *testing.T) {
	// Both sources hold cart id=5 for owner 7, with different contents.
	remote := &fakeRemote{carts: []model.Cart{
		remoteCart(5, 7, line(1, 9, 5.00)),
	}}
	agg, ms := newTestAggregator(t, remote, LocalWins{})
	put(t, ms, remoteCart(5, 7, line(1, 2, 5.00)))

	got, err := agg.ListAll(context.Background(), FilterAll)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("id collision must be reported once, got %d entries", len(got))
	}
	if got[0].Items[0].Quantity != 2 {
		t.Errorf("expected the local version (qty 2), got qty %d",
			got[0].Items[0].Quantity)
	}
	if got[0].Source != SourceLocal {
		t.Errorf("source = %s, want local", got[0].Source)
	}
}

func TestListAll_RemoteWinsStrategy(t *testing.T) {
	remote := &fakeRemote{carts: []model.Cart{
		remoteCart(5, 7, line(1, 9, 5.00)),
	}}
	agg, ms := newTestAggregator(t, remote, RemoteWins{})
	put(t, ms, remoteCart(5, 7, line(1, 2, 5.00)))

	got, err := agg.ListAll(context.Background(), FilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Items[0].Quantity != 9 {
		t.Fatalf("expected the remote version under RemoteWins, got %+v", got)
	}
}

func TestListAll_MostRecentFallsBackToLocal(t *testing.T) {
	// Remote demo carts carry no timestamp, so local wins on ties.
	remote := &fakeRemote{carts: []model.Cart{
		remoteCart(5, 7, line(1, 9, 5.00)),
	}}
	agg, ms := newTestAggregator(t, remote, MostRecent{})

	local := remoteCart(5, 7, line(1, 2, 5.00))
	local.UpdatedAt = time.Now().UTC()
	put(t, ms, local)

	got, err := agg.ListAll(context.Background(), FilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Items[0].Quantity != 2 {
		t.Errorf("MostRecent should pick the timestamped local version, got qty %d",
			got[0].Items[0].Quantity)
	}
}

func TestListAll_Filters(t *testing.T) {
	remote := &fakeRemote{carts: []model.Cart{
		remoteCart(5, 7, line(1, 9, 5.00)), // collides with local 5
		remoteCart(8, 12, line(2, 1, 9.99)),
	}}
	agg, ms := newTestAggregator(t, remote, nil)
	put(t, ms, remoteCart(5, 7, line(1, 2, 5.00)))
	put(t, ms, remoteCart(10001, 3, line(42, 1, 3.00)))

	localOnly, err := agg.ListAll(context.Background(), FilterLocalOnly)
	if err != nil {
		t.Fatal(err)
	}
	gotIDs := ids(localOnly)
	if len(gotIDs) != 2 || gotIDs[0] != 10001 || gotIDs[1] != 5 {
		t.Errorf("local filter ids = %v, want [10001 5]", gotIDs)
	}

	remoteOnly, err := agg.ListAll(context.Background(), FilterRemoteOnly)
	if err != nil {
		t.Fatal(err)
	}
	gotIDs = ids(remoteOnly)
	if len(gotIDs) != 1 || gotIDs[0] != 8 {
		t.Errorf("remote filter ids = %v, want [8] (id 5 is shadowed by local)", gotIDs)
	}
}

func TestListAll_RemoteOutageDegradesToLocal(t *testing.T) {
	remote := &fakeRemote{listErr: gateway.ErrUnavailable}
	agg, ms := newTestAggregator(t, remote, nil)
	put(t, ms, remoteCart(5, 7, line(1, 2, 5.00)))

	got, err := agg.ListAll(context.Background(), FilterAll)
	if err != nil {
		t.Fatalf("remote outage should not fail the listing: %v", err)
	}
	if len(got) != 1 || got[0].ID != 5 {
		t.Errorf("expected the local set, got %+v", got)
	}
}

func TestDeleteCart_LocalRecord(t *testing.T) {
	remote := &fakeRemote{}
	agg, ms := newTestAggregator(t, remote, nil)
	put(t, ms, remoteCart(5, 7, line(1, 2, 5.00)))

	outcome, err := agg.DeleteCart(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Source != SourceLocal {
		t.Errorf("outcome source = %s, want local", outcome.Source)
	}
	if _, err := ms.Get(context.Background(), 5); !errors.Is(err, store.ErrNotFound) {
		t.Error("local record should be gone")
	}
	if len(remote.deleted) != 0 {
		t.Error("local delete must not touch the remote")
	}
}

func TestDeleteCart_RemoteReadOnlyBackend(t *testing.T) {
	// Cart 5 exists only remotely and the backend rejects deletes.
	remote := &fakeRemote{
		carts:     []model.Cart{remoteCart(5, 7, line(1, 9, 5.00))},
		deleteErr: gateway.ErrUnsupported,
	}
	agg, _ := newTestAggregator(t, remote, nil)

	_, err := agg.DeleteCart(context.Background(), 5)
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}

	// The cart must still appear in a subsequent listing.
	got, err := agg.ListAll(context.Background(), FilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 5 {
		t.Errorf("cart 5 should still be listed, got %v", ids(got))
	}
}

func TestDeleteCart_NowhereIsNotFound(t *testing.T) {
	remote := &fakeRemote{deleteErr: gateway.ErrNotFound}
	agg, _ := newTestAggregator(t, remote, nil)

	_, err := agg.DeleteCart(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCart_RemoteSucceeds(t *testing.T) {
	remote := &fakeRemote{carts: []model.Cart{remoteCart(5, 7, line(1, 9, 5.00))}}
	agg, _ := newTestAggregator(t, remote, nil)

	outcome, err := agg.DeleteCart(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Source != SourceRemote {
		t.Errorf("outcome source = %s, want remote", outcome.Source)
	}
	if len(remote.deleted) != 1 || remote.deleted[0] != 5 {
		t.Errorf("remote delete not issued: %v", remote.deleted)
	}
}

func TestParseFilter(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Filter
	}{
		{"", FilterAll},
		{"all", FilterAll},
		{"local", FilterLocalOnly},
		{"remote", FilterRemoteOnly},
	} {
		got, err := ParseFilter(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseFilter(%q) = (%v, %v), want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := ParseFilter("bogus"); err == nil {
		t.Error("expected error for unknown filter")
	}
}
