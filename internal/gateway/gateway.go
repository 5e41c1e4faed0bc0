// Package gateway is a thin CRUD façade over the remote cart/product
// service. The remote side is an opaque collaborator: its data is read
// into the engine's model and never treated as a write target once a
// durable copy exists. Any transport or server failure surfaces as
// ErrUnavailable, never as "no cart".
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cartsync/cart-engine/internal/model"
)

var (
	// ErrUnavailable means the remote call failed or timed out.
	ErrUnavailable = errors.New("gateway: remote cart service unavailable")

	// ErrNotFound means the remote service answered but has no such record.
	ErrNotFound = errors.New("gateway: not found")

	// ErrUnsupported means the remote backend rejected a write. The demo
	// backend is effectively read-only; deletes and updates may land here.
	ErrUnsupported = errors.New("gateway: operation not supported by remote backend")
)

// Client talks to a dummyjson-style cart API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a gateway client. Timeout policy lives here, not in
// the engine.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithHTTP creates a gateway client with a caller-supplied
// http.Client (tests inject httptest servers this way).
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

// --- Wire types (remote schema, distinct from the engine model) ---

type wireProduct struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
	Total     float64 `json:"total"`
	Thumbnail string  `json:"thumbnail"`
}

type wireCart struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"userId"`
	Products      []wireProduct `json:"products"`
	Total         float64       `json:"total"`
	TotalProducts int           `json:"totalProducts"`
	TotalQuantity int64         `json:"totalQuantity"`
}

type wireCartList struct {
	Carts []wireCart `json:"carts"`
	Total int        `json:"total"`
}

// Product is a catalog entry used by the price resolver.
type Product struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"-"`
	RawPrice  float64         `json:"price"`
	Thumbnail string          `json:"thumbnail"`
}

// --- Cart operations ---

// ListAll fetches the remote full cart listing.
func (c *Client) ListAll(ctx context.Context) ([]model.Cart, error) {
	var list wireCartList
	if err := c.get(ctx, "/carts", &list); err != nil {
		return nil, err
	}

	carts := make([]model.Cart, 0, len(list.Carts))
	for i := range list.Carts {
		carts = append(carts, *fromWire(&list.Carts[i]))
	}
	return carts, nil
}

// GetByOwner fetches the owner's carts and returns the one with the
// highest id (the remote side may hold several historical carts per
// owner; the newest wins). Returns ErrNotFound when the owner has none.
func (c *Client) GetByOwner(ctx context.Context, ownerKey int64) (*model.Cart, error) {
	var list wireCartList
	err := c.get(ctx, fmt.Sprintf("/carts/user/%d", ownerKey), &list)
	if err != nil {
		return nil, err
	}
	if len(list.Carts) == 0 {
		return nil, ErrNotFound
	}

	latest := &list.Carts[0]
	for i := range list.Carts {
		if list.Carts[i].ID > latest.ID {
			latest = &list.Carts[i]
		}
	}
	return fromWire(latest), nil
}

// Create asks the remote service to create a cart. Best-effort: the demo
// backend echoes the request but does not persist it.
func (c *Client) Create(ctx context.Context, ownerKey int64, items []model.LineItem) (*model.Cart, error) {
	body := map[string]any{
		"userId":   ownerKey,
		"products": toWireProducts(items),
	}
	var out wireCart
	if err := c.send(ctx, http.MethodPost, "/carts/add", body, &out); err != nil {
		return nil, err
	}
	return fromWire(&out), nil
}

// Update asks the remote service to replace a cart's items. Best-effort,
// same caveat as Create.
func (c *Client) Update(ctx context.Context, cartID int64, items []model.LineItem) (*model.Cart, error) {
	body := map[string]any{
		"merge":    false,
		"products": toWireProducts(items),
	}
	var out wireCart
	if err := c.send(ctx, http.MethodPut, fmt.Sprintf("/carts/%d", cartID), body, &out); err != nil {
		return nil, err
	}
	return fromWire(&out), nil
}

// Delete attempts a remote delete. A read-only backend answers with a
// client error, surfaced as ErrUnsupported — distinct from ErrNotFound
// and from transport failure.
func (c *Client) Delete(ctx context.Context, cartID int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+fmt.Sprintf("/carts/%d", cartID), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrUnsupported
	default:
		return fmt.Errorf("%w: delete cart %d: status %d", ErrUnavailable, cartID, resp.StatusCode)
	}
}

// GetProduct fetches one catalog entry for price lookup.
func (c *Client) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var p Product
	if err := c.get(ctx, fmt.Sprintf("/products/%d", productID), &p); err != nil {
		return nil, err
	}
	p.Price = decimal.NewFromFloat(p.RawPrice)
	return &p, nil
}

// --- HTTP plumbing ---

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %s %s: status %d", ErrUnsupported, req.Method, req.URL.Path, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s: status %d", ErrUnavailable, req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, req.URL.Path, err)
	}
	return nil
}

// --- Wire mapping ---

// fromWire converts a remote cart into the engine model. Remote floats
// become decimals at the boundary; aggregates are taken as reported since
// the engine recomputes them before any local mutation persists.
func fromWire(w *wireCart) *model.Cart {
	items := make([]model.LineItem, 0, len(w.Products))
	for i := range w.Products {
		p := &w.Products[i]
		items = append(items, model.LineItem{
			ProductID:    p.ID,
			Title:        p.Title,
			Quantity:     p.Quantity,
			UnitPrice:    decimal.NewFromFloat(p.Price),
			LineTotal:    decimal.NewFromFloat(p.Total),
			ThumbnailRef: p.Thumbnail,
		})
	}
	return &model.Cart{
		ID:            w.ID,
		OwnerKey:      w.UserID,
		Items:         items,
		Total:         decimal.NewFromFloat(w.Total),
		ItemKindCount: w.TotalProducts,
		TotalQuantity: w.TotalQuantity,
	}
}

func toWireProducts(items []model.LineItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, map[string]any{
			"id":       items[i].ProductID,
			"quantity": items[i].Quantity,
		})
	}
	return out
}
