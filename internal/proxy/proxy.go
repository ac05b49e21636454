// Package proxy implements the catch-all forwarder that relays unmatched API
// paths verbatim to the backend owning their prefix.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/storefronthq/gateway/internal/backend"
	gatewayhttputil "github.com/storefronthq/gateway/internal/httputil"
	"github.com/storefronthq/gateway/internal/logging"
)

type rule struct {
	prefix  string
	service backend.Service
	proxy   *httputil.ReverseProxy
}

// Router forwards requests by URL prefix. Method, full path, query and body
// are passed through unchanged and the upstream status and body are relayed
// as-is.
type Router struct {
	rules  map[string]*rule
	sorted []*rule // longest prefix first
	logger *logging.Logger
}

// NewRouter creates an empty proxy router.
func NewRouter(logger *logging.Logger) *Router {
	return &Router{rules: make(map[string]*rule), logger: logger}
}

// Register maps a URL prefix to a backend. Registration is idempotent:
// re-registering the same prefix for the same service is a no-op, while a
// conflicting rule for an already-claimed prefix is an error.
func (p *Router) Register(prefix string, service backend.Service, baseURL string) error {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" || !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("proxy prefix must start with /: %q", prefix)
	}

	if existing, ok := p.rules[prefix]; ok {
		if existing.service == service {
			return nil
		}
		return fmt.Errorf("prefix %s already routed to %s", prefix, existing.service)
	}

	target, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("parse backend url for %s: %w", service, err)
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"service": string(service),
			"path":    r.URL.Path,
		}).Error("proxy upstream unreachable")
		gatewayhttputil.JSONError(w, fmt.Sprintf("%s service unavailable", service), http.StatusBadGateway)
	}

	r := &rule{prefix: prefix, service: service, proxy: rp}
	p.rules[prefix] = r
	p.sorted = append(p.sorted, r)
	sort.Slice(p.sorted, func(i, j int) bool {
		return len(p.sorted[i].prefix) > len(p.sorted[j].prefix)
	})
	return nil
}

// Match returns the backend owning the path's longest registered prefix.
func (p *Router) Match(path string) (backend.Service, bool) {
	if r := p.match(path); r != nil {
		return r.service, true
	}
	return "", false
}

func (p *Router) match(path string) *rule {
	for _, r := range p.sorted {
		if path == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
			return r
		}
	}
	return nil
}

// ServeHTTP implements http.Handler.
func (p *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rule := p.match(r.URL.Path)
	if rule == nil {
		gatewayhttputil.NotFound(w, "no route for path")
		return
	}
	rule.proxy.ServeHTTP(w, r)
}
