// Package aggregate computes derived cart summaries. It is the single
// source of truth for totals: the engine re-runs Recompute after every
// structural change instead of patching aggregates incrementally, so the
// stored values can never drift from the items they summarize.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/cartsync/cart-engine/internal/model"
)

// Totals is the full set of derived aggregates for one cart.
type Totals struct {
	Total         decimal.Decimal
	ItemKindCount int
	TotalQuantity int64
}

// Recompute derives all aggregates from items. Pure and total: the empty
// list yields all zeros.
func Recompute(items []model.LineItem) Totals {
	t := Totals{Total: decimal.Zero}
	for i := range items {
		t.Total = t.Total.Add(items[i].LineTotal)
		t.TotalQuantity += items[i].Quantity
	}
	t.ItemKindCount = len(items)
	return t
}

// LineTotal computes the total for one line from its factors.
func LineTotal(unitPrice decimal.Decimal, quantity int64) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(quantity))
}

// Apply recomputes a line's total and the cart's aggregates in place.
// Call after any mutation of cart.Items; this is the only write path for
// Total, ItemKindCount, and TotalQuantity.
func Apply(cart *model.Cart) {
	for i := range cart.Items {
		cart.Items[i].LineTotal = LineTotal(cart.Items[i].UnitPrice, cart.Items[i].Quantity)
	}
	t := Recompute(cart.Items)
	cart.Total = t.Total
	cart.ItemKindCount = t.ItemKindCount
	cart.TotalQuantity = t.TotalQuantity
}
