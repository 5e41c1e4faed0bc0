package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cartsync/cart-engine/internal/model"
)

// Server exposes the command surface over HTTP. Sessions are explicit
// handles: POST /sessions creates and resolves one, and every cart route
// is scoped to a session id, so no cart state is ever ambient.
type Server struct {
	engine *Engine
	agg    *Aggregator

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewServer creates the HTTP server layer over the engine and aggregator.
func NewServer(engine *Engine, agg *Aggregator) *Server {
	return &Server{
		engine:   engine,
		agg:      agg,
		sessions: make(map[string]*Session),
	}
}

// Routes mounts all cart routes on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/sessions", s.CreateSession)
	r.Delete("/sessions/{sessionID}", s.DeleteSession)
	r.Get("/sessions/{sessionID}/cart", s.GetCart)
	r.Post("/sessions/{sessionID}/cart/refresh", s.RefreshCart)
	r.Delete("/sessions/{sessionID}/cart", s.ClearCart)
	r.Post("/sessions/{sessionID}/cart/items", s.AddItem)
	r.Put("/sessions/{sessionID}/cart/items/{productID}", s.UpdateQuantity)
	r.Delete("/sessions/{sessionID}/cart/items/{productID}", s.RemoveItem)

	r.Get("/carts", s.ListCarts)
	r.Delete("/carts/{cartID}", s.DeleteCart)
}

// --- Request/Response types ---

// CreateSessionRequest is the JSON body for session creation.
type CreateSessionRequest struct {
	UserID int64 `json:"user_id"`
}

// SessionResponse is returned from session creation and cart reads.
type SessionResponse struct {
	SessionID string       `json:"session_id"`
	OwnerKey  int64        `json:"owner_key"`
	State     string       `json:"state"`
	Cart      *CartPayload `json:"cart"`
}

// AddItemRequest is the JSON body for POST .../cart/items.
type AddItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// UpdateQuantityRequest is the JSON body for PUT .../cart/items/{productID}.
type UpdateQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

// --- Session handlers ---

// CreateSession handles POST /api/v1/sessions: binds the given user id,
// resolves the owner's cart, and returns a session handle.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	sess := s.engine.NewSession()
	if err := s.engine.SetIdentity(r.Context(), sess, req.UserID, true); err != nil {
		s.engine.CloseSession(sess)
		writeEngineError(w, err)
		return
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, SessionResponse{
		SessionID: id,
		OwnerKey:  sess.OwnerKey(),
		State:     sess.State().String(),
		Cart:      toPayload(sess.Current()),
	})
}

// DeleteSession handles DELETE /api/v1/sessions/{sessionID}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}
	s.engine.CloseSession(sess)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "sessionID")
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		writeError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

// --- Cart handlers ---

// GetCart handles GET /api/v1/sessions/{sessionID}/cart.
func (s *Server) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPayload(sess.Current()))
}

// RefreshCart handles POST /api/v1/sessions/{sessionID}/cart/refresh.
func (s *Server) RefreshCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.engine.Refresh(r.Context(), sess); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(sess.Current()))
}

// AddItem handles POST /api/v1/sessions/{sessionID}/cart/items.
func (s *Server) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == 0 {
		writeError(w, "product_id is required", http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		writeError(w, "quantity must be >= 1", http.StatusBadRequest)
		return
	}

	cart, err := s.engine.AddItem(r.Context(), sess, req.ProductID, req.Quantity)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(cart))
}

// UpdateQuantity handles PUT /api/v1/sessions/{sessionID}/cart/items/{productID}.
func (s *Server) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, "invalid product id", http.StatusBadRequest)
		return
	}

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cart, err := s.engine.UpdateQuantity(r.Context(), sess, productID, req.Quantity)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(cart))
}

// RemoveItem handles DELETE /api/v1/sessions/{sessionID}/cart/items/{productID}.
func (s *Server) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, "invalid product id", http.StatusBadRequest)
		return
	}

	cart, err := s.engine.RemoveItem(r.Context(), sess, productID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(cart))
}

// ClearCart handles DELETE /api/v1/sessions/{sessionID}/cart.
func (s *Server) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.engine.Clear(r.Context(), sess); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- All-carts handlers ---

// ListCarts handles GET /api/v1/carts?filter=all|local|remote.
func (s *Server) ListCarts(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	carts, err := s.agg.ListAll(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, carts)
}

// DeleteCart handles DELETE /api/v1/carts/{cartID}.
func (s *Server) DeleteCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := strconv.ParseInt(chi.URLParam(r, "cartID"), 10, 64)
	if err != nil {
		writeError(w, "invalid cart id", http.StatusBadRequest)
		return
	}

	outcome, err := s.agg.DeleteCart(r.Context(), cartID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// --- Payload mapping ---

// CartPayload is the wire shape of a cart; null when no current cart
// exists (absent, as opposed to empty).
type CartPayload struct {
	ID            int64          `json:"id"`
	OwnerKey      int64          `json:"owner_key"`
	Items         []LineItemView `json:"items"`
	Total         string         `json:"total"`
	ItemKindCount int            `json:"item_kind_count"`
	TotalQuantity int64          `json:"total_quantity"`
}

// LineItemView is the wire shape of one line item.
type LineItemView struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
	Thumbnail string `json:"thumbnail"`
}

func toPayload(c *model.Cart) *CartPayload {
	if c == nil {
		return nil
	}
	items := make([]LineItemView, 0, len(c.Items))
	for i := range c.Items {
		it := &c.Items[i]
		items = append(items, LineItemView{
			ProductID: it.ProductID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.String(),
			LineTotal: it.LineTotal.String(),
			Thumbnail: it.ThumbnailRef,
		})
	}
	return &CartPayload{
		ID:            c.ID,
		OwnerKey:      c.OwnerKey,
		Items:         items,
		Total:         c.Total.String(),
		ItemKindCount: c.ItemKindCount,
		TotalQuantity: c.TotalQuantity,
	}
}

// --- Error mapping ---

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoOwner):
		writeError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrUnsupportedOperation):
		writeError(w, err.Error(), http.StatusMethodNotAllowed)
	case errors.Is(err, ErrGatewayUnavailable):
		writeError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, ErrStoreUnavailable):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		writeError(w, err.Error(), http.StatusBadRequest)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
