package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/storefronthq/gateway/internal/backend"
	"github.com/storefronthq/gateway/internal/middleware"
)

// Product is the catalog item shape used by the aggregation pages.
type Product struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Category string `json:"category"`
	Brand    string `json:"brand"`
}

// =============================================================================
// Aggregation Handlers
// =============================================================================

// handleHome serves the catalog view: the product list plus locally derived
// category and brand sets.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	var products []Product
	if err := s.backends.MustFor(backend.Catalog).Get(r.Context(), "/products", &products); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to fetch products for home page")
		s.renderError(w, sess, "could not load products")
		return
	}

	s.renderer.Render(w, http.StatusOK, "index", pageData(sess, map[string]any{
		"products":   products,
		"categories": uniqueValues(products, func(p Product) string { return p.Category }),
		"brands":     uniqueValues(products, func(p Product) string { return p.Brand }),
	}))
}

// handleProductDetail serves one product's detail page.
func (s *Server) handleProductDetail(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	id := mux.Vars(r)["id"]

	var product json.RawMessage
	if err := s.backends.MustFor(backend.Catalog).Get(r.Context(), "/products/"+id, &product); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to fetch product")
		s.renderError(w, sess, "product not found")
		return
	}

	s.renderer.Render(w, http.StatusOK, "product-detail", pageData(sess, map[string]any{
		"product": product,
	}))
}

// handleOrders serves the session user's order history.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	var orders json.RawMessage
	path := fmt.Sprintf("/orders/%d", sess.Identity.ID)
	if err := s.backends.MustFor(backend.Order).Get(r.Context(), path, &orders); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to fetch order history")
		s.renderError(w, sess, "could not load order history")
		return
	}

	s.renderer.Render(w, http.StatusOK, "orders", pageData(sess, map[string]any{
		"orders": orders,
	}))
}

// handleAdmin serves the admin dashboard. The four upstream fetches are
// independent of one another, so they fan out concurrently; any failure
// yields a single uniform error view, never a partial dashboard.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	var (
		products json.RawMessage
		users    json.RawMessage
		orders   json.RawMessage
		payments json.RawMessage
	)

	var g errgroup.Group
	g.Go(func() error {
		return s.backends.MustFor(backend.Catalog).Get(r.Context(), "/products", &products)
	})
	g.Go(func() error {
		return s.backends.MustFor(backend.Identity).Get(r.Context(), "/users", &users)
	})
	g.Go(func() error {
		return s.backends.MustFor(backend.Order).Get(r.Context(), "/orders", &orders)
	})
	g.Go(func() error {
		return s.backends.MustFor(backend.Payment).Get(r.Context(), "/payments/stats", &payments)
	})

	if err := g.Wait(); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to fetch admin dashboard data")
		s.renderError(w, sess, "could not load admin dashboard")
		return
	}

	s.renderer.Render(w, http.StatusOK, "admin", pageData(sess, map[string]any{
		"products": products,
		"users":    users,
		"orders":   orders,
		"payments": payments,
	}))
}

// handleCartPage serves the cart page shell; the cart contents are loaded by
// the /api/cart endpoint.
func (s *Server) handleCartPage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	s.renderer.Render(w, http.StatusOK, "cart", pageData(sess, nil))
}

// uniqueValues derives the set of distinct non-empty values of key across
// products, preserving first-appearance order.
func uniqueValues(products []Product, key func(Product) string) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0, len(products))
	for _, p := range products {
		v := key(p)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
