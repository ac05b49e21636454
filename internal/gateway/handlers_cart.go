package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/storefronthq/gateway/internal/backend"
	"github.com/storefronthq/gateway/internal/httputil"
	"github.com/storefronthq/gateway/internal/middleware"
)

// =============================================================================
// Cart API
// =============================================================================

// handleGetCart relays the session user's cart from the order service.
func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	var cart json.RawMessage
	path := fmt.Sprintf("/cart/%d", sess.Identity.ID)
	if err := s.backends.MustFor(backend.Order).Get(r.Context(), path, &cart); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to fetch cart")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cart)
}

// handleAddToCart validates the item locally, then forwards it to the order
// service. Missing fields are rejected without contacting any backend.
func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	var item struct {
		ProductID int64 `json:"productId"`
		Quantity  int64 `json:"quantity"`
	}
	if !httputil.DecodeJSON(w, r, &item) {
		return
	}
	if item.ProductID == 0 || item.Quantity <= 0 {
		httputil.BadRequest(w, "productId and quantity are required")
		return
	}

	var result json.RawMessage
	path := fmt.Sprintf("/cart/%d", sess.Identity.ID)
	if err := s.backends.MustFor(backend.Order).Post(r.Context(), path, item, &result); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to add cart item")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleRemoveFromCart deletes one product from the session user's cart.
func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	productID := mux.Vars(r)["productId"]

	var result json.RawMessage
	path := fmt.Sprintf("/cart/%d/%s", sess.Identity.ID, productID)
	if err := s.backends.MustFor(backend.Order).Delete(r.Context(), path, &result); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to remove cart item")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
