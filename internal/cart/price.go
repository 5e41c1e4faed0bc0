package cart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cartsync/cart-engine/internal/gateway"
)

// PriceInfo is what the engine needs to open a new line item.
type PriceInfo struct {
	UnitPrice    decimal.Decimal
	Title        string
	ThumbnailRef string
}

// PriceResolver supplies price and presentation data for a product id the
// current cart has not seen before. Resolve never fails: a resolver that
// cannot answer must fall back to a documented default, never omit the
// price silently.
type PriceResolver interface {
	Resolve(ctx context.Context, productID int64) PriceInfo
}

// StaticResolver is the documented fallback: every unknown product gets
// the placeholder price, title, and thumbnail. Named behavior, covered by
// tests — not a silent constant buried in the engine.
type StaticResolver struct{}

// Fallback values for products the catalog cannot answer for.
var FallbackUnitPrice = decimal.NewFromInt(10)

const (
	FallbackTitleFormat = "Product %d"
	FallbackThumbnail   = "/placeholder.svg"
)

func (StaticResolver) Resolve(_ context.Context, productID int64) PriceInfo {
	return PriceInfo{
		UnitPrice:    FallbackUnitPrice,
		Title:        fmt.Sprintf(FallbackTitleFormat, productID),
		ThumbnailRef: FallbackThumbnail,
	}
}

// ProductSource is the catalog lookup the CatalogResolver consumes.
type ProductSource interface {
	GetProduct(ctx context.Context, productID int64) (*gateway.Product, error)
}

// CatalogResolver asks the remote catalog for real product data and falls
// back to the static resolver when the catalog is unavailable.
type CatalogResolver struct {
	catalog  ProductSource
	fallback PriceResolver
}

// NewCatalogResolver creates a catalog-backed resolver over the gateway.
func NewCatalogResolver(catalog ProductSource) *CatalogResolver {
	return &CatalogResolver{catalog: catalog, fallback: StaticResolver{}}
}

func (r *CatalogResolver) Resolve(ctx context.Context, productID int64) PriceInfo {
	p, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		slog.Warn("catalog lookup failed, using fallback price",
			"product_id", productID, "err", err)
		return r.fallback.Resolve(ctx, productID)
	}
	return PriceInfo{
		UnitPrice:    p.Price,
		Title:        p.Title,
		ThumbnailRef: p.Thumbnail,
	}
}
