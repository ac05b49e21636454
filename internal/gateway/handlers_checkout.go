package gateway

import (
	"net/http"

	"github.com/storefronthq/gateway/internal/httputil"
	"github.com/storefronthq/gateway/internal/middleware"
)

// handleCheckout runs the checkout orchestrator for the session user.
//
// 200 {message, orderId} on success, 400 {error} for the client-correctable
// outcomes (empty cart, declined payment), 500 {error} otherwise. The
// order-after-payment partial failure keeps its distinct code internally and
// in logs while still surfacing as a 500 here.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	receipt, err := s.checkout.Run(r.Context(), sess.Identity.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "payment successful and order created",
		"orderId": receipt.OrderID,
	})
}
