// Package model defines the core domain types shared across the cart engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product line inside a cart. LineTotal is always
// UnitPrice * Quantity; it is recomputed whenever either factor changes
// and never persisted out of sync.
type LineItem struct {
	ProductID    int64           `json:"product_id" db:"product_id"`
	Title        string          `json:"title" db:"title"`
	Quantity     int64           `json:"quantity" db:"quantity"`     // always >= 1
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"` // >= 0
	LineTotal    decimal.Decimal `json:"line_total" db:"line_total"`
	ThumbnailRef string          `json:"thumbnail" db:"thumbnail"`
}

// Cart is one owner's cart with derived aggregates. Items are ordered and
// carry at most one line per product id. Aggregates (Total, ItemKindCount,
// TotalQuantity) are derived from Items and rewritten as a unit.
type Cart struct {
	ID            int64           `json:"id" db:"id"`
	OwnerKey      int64           `json:"owner_key" db:"owner_key"`
	Items         []LineItem      `json:"items" db:"items"`
	Total         decimal.Decimal `json:"total" db:"total"`
	ItemKindCount int             `json:"item_kind_count" db:"item_kind_count"`
	TotalQuantity int64           `json:"total_quantity" db:"total_quantity"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so stores and callers never share Items slices.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = make([]LineItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

// Find returns the index of the line for productID, or -1.
func (c *Cart) Find(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// IsEmpty reports whether the cart has no line items. An empty cart is a
// valid record; the engine treats it as "nothing to display" but keeps the
// record in the store until an explicit clear.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}
