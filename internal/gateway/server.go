// Package gateway assembles the storefront gateway: the routing table, the
// middleware chain, the aggregation handlers and the checkout endpoint.
package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/storefronthq/gateway/internal/backend"
	"github.com/storefronthq/gateway/internal/checkout"
	"github.com/storefronthq/gateway/internal/config"
	"github.com/storefronthq/gateway/internal/httputil"
	"github.com/storefronthq/gateway/internal/logging"
	"github.com/storefronthq/gateway/internal/metrics"
	"github.com/storefronthq/gateway/internal/middleware"
	"github.com/storefronthq/gateway/internal/proxy"
	"github.com/storefronthq/gateway/internal/routes"
	"github.com/storefronthq/gateway/internal/session"
)

const Version = "1.0.0"

// Config wires the gateway server's collaborators.
type Config struct {
	Gateway  *config.Config
	Logger   *logging.Logger
	Sessions session.Store
	Backends *backend.Registry
	Renderer Renderer // optional; defaults to JSONRenderer
}

// Server is the assembled gateway.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	sessions session.Store
	backends *backend.Registry
	checkout *checkout.Orchestrator
	renderer Renderer
	router   *mux.Router
}

// New creates the gateway server and registers all routes.
func New(cfg Config) (*Server, error) {
	if cfg.Gateway == nil || cfg.Logger == nil || cfg.Sessions == nil || cfg.Backends == nil {
		return nil, fmt.Errorf("gateway: config, logger, sessions and backends are required")
	}

	renderer := cfg.Renderer
	if renderer == nil {
		renderer = JSONRenderer{}
	}

	s := &Server{
		cfg:      cfg.Gateway,
		logger:   cfg.Logger,
		sessions: cfg.Sessions,
		backends: cfg.Backends,
		renderer: renderer,
	}

	orderClient, err := cfg.Backends.For(backend.Order)
	if err != nil {
		return nil, err
	}
	paymentClient, err := cfg.Backends.For(backend.Payment)
	if err != nil {
		return nil, err
	}
	s.checkout = checkout.New(orderClient, paymentClient, cfg.Logger)

	table, err := routeTable()
	if err != nil {
		return nil, err
	}

	proxyRouter, err := s.buildProxy()
	if err != nil {
		return nil, err
	}

	if err := s.registerRoutes(table, proxyRouter); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// routeTable is the ordered routing configuration, first match wins. It is
// the single source of truth for which routes need which role and where an
// unmatched path is forwarded.
func routeTable() (*routes.Table, error) {
	admin := routes.RequireRole(session.RoleAdmin)
	auth := routes.RequireAuth()

	return routes.NewTable([]routes.Descriptor{
		{Method: "GET", Pattern: "/", Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "GET", Pattern: "/login", Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "POST", Pattern: "/login", Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "GET", Pattern: "/register", Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "POST", Pattern: "/register", Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "GET", Pattern: "/logout", Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "GET", Pattern: "/product/{id}", Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "GET", Pattern: "/cart", RequiredRole: auth, Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "GET", Pattern: "/orders", RequiredRole: auth, Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "GET", Pattern: "/admin", RequiredRole: admin, Target: routes.TargetLocal, Class: routes.ClassPage},

		{Method: "GET", Pattern: "/api/cart", RequiredRole: auth, Target: routes.TargetLocal, Class: routes.ClassAPI},
		{Method: "POST", Pattern: "/api/cart", RequiredRole: auth, Target: routes.TargetLocal, Class: routes.ClassAPI},
		{Method: "DELETE", Pattern: "/api/cart/{productId}", RequiredRole: auth, Target: routes.TargetLocal, Class: routes.ClassAPI},
		{Method: "POST", Pattern: "/api/payments/checkout", RequiredRole: auth, Target: routes.TargetLocal, Class: routes.ClassAPI},

		// Product writes are admin-gated, then forwarded to the catalog.
		{Method: "POST", Pattern: "/api/products/*", RequiredRole: admin, Target: routes.TargetCatalog, Class: routes.ClassAPI},
		{Method: "PUT", Pattern: "/api/products/*", RequiredRole: admin, Target: routes.TargetCatalog, Class: routes.ClassAPI},
		{Method: "DELETE", Pattern: "/api/products/*", RequiredRole: admin, Target: routes.TargetCatalog, Class: routes.ClassAPI},

		// Catch-all pass-through by prefix.
		{Method: "*", Pattern: "/api/products/*", Target: routes.TargetCatalog, Class: routes.ClassAPI},
		{Method: "*", Pattern: "/api/users/*", Target: routes.TargetIdentity, Class: routes.ClassAPI},
		{Method: "*", Pattern: "/api/orders/*", Target: routes.TargetOrder, Class: routes.ClassAPI},
		{Method: "*", Pattern: "/api/payments/*", Target: routes.TargetPayment, Class: routes.ClassAPI},
	})
}

func (s *Server) buildProxy() (*proxy.Router, error) {
	p := proxy.NewRouter(s.logger)
	for prefix, service := range map[string]backend.Service{
		"/api/products": backend.Catalog,
		"/api/users":    backend.Identity,
		"/api/orders":   backend.Order,
		"/api/payments": backend.Payment,
	} {
		client, err := s.backends.For(service)
		if err != nil {
			return nil, err
		}
		if err := p.Register(prefix, service, client.BaseURL()); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *Server) registerRoutes(table *routes.Table, proxyRouter *proxy.Router) error {
	r := mux.NewRouter()

	cors := middleware.NewCORSMiddleware(s.cfg.CORS.AllowedOrigins)
	limiter := middleware.NewRateLimiter(s.cfg.RateLimit.RequestsPerSecond, s.cfg.RateLimit.Burst, s.logger)
	limiter.StartCleanup(10 * time.Minute)

	r.Use(
		middleware.Logging(s.logger),
		middleware.Metrics(),
		mux.MiddlewareFunc(cors.Handler),
		middleware.Session(s.sessions),
		mux.MiddlewareFunc(limiter.Handler),
		middleware.Guard(table),
	)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", s.handleRegisterPage).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet)
	r.HandleFunc("/product/{id}", s.handleProductDetail).Methods(http.MethodGet)
	r.HandleFunc("/cart", s.handleCartPage).Methods(http.MethodGet)
	r.HandleFunc("/orders", s.handleOrders).Methods(http.MethodGet)
	r.HandleFunc("/admin", s.handleAdmin).Methods(http.MethodGet)

	r.HandleFunc("/api/cart", s.handleGetCart).Methods(http.MethodGet)
	r.HandleFunc("/api/cart", s.handleAddToCart).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/{productId}", s.handleRemoveFromCart).Methods(http.MethodDelete)
	r.HandleFunc("/api/payments/checkout", s.handleCheckout).Methods(http.MethodPost)

	// Everything else under /api/ is forwarded verbatim by prefix.
	r.PathPrefix("/api/").Handler(proxyRouter)

	s.router = r
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "gateway",
		"version":   Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// renderError renders the uniform error view for page routes.
func (s *Server) renderError(w http.ResponseWriter, sess *session.Session, message string) {
	s.renderer.Render(w, http.StatusInternalServerError, "error", pageData(sess, map[string]any{
		"message": message,
	}))
}
