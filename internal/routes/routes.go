// Package routes defines the ordered routing table and the access guard that
// gates every inbound request before any backend is contacted.
package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/storefronthq/gateway/internal/httputil"
	"github.com/storefronthq/gateway/internal/session"
)

// Class distinguishes browser page routes from JSON API routes. The class
// decides how an authorization denial is reported: pages redirect to /login,
// APIs answer with a status code.
type Class string

const (
	ClassPage Class = "page"
	ClassAPI  Class = "api"
)

// Target names the component that serves a matched route.
type Target string

const (
	TargetLocal    Target = "local"
	TargetCatalog  Target = "catalog"
	TargetIdentity Target = "identity"
	TargetOrder    Target = "order"
	TargetPayment  Target = "payment"
)

// Descriptor is one immutable entry in the routing table.
//
// Pattern is a /-separated path where a {name} segment matches any single
// segment and a trailing /* matches the bare prefix or any deeper path.
// Method "*" matches any method.
type Descriptor struct {
	Method       string
	Pattern      string
	RequiredRole *session.Role
	Target       Target
	Class        Class
}

func (d *Descriptor) matches(method, path string) bool {
	if d.Method != "*" && d.Method != method {
		return false
	}

	if prefix, ok := strings.CutSuffix(d.Pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}

	patSegs := strings.Split(strings.Trim(d.Pattern, "/"), "/")
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")
	if len(patSegs) != len(pathSegs) {
		return false
	}
	for i, seg := range patSegs {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if pathSegs[i] == "" {
				return false
			}
			continue
		}
		if seg != pathSegs[i] {
			return false
		}
	}
	return true
}

// RoleAny marks a route that requires an authenticated identity of any role.
const RoleAny session.Role = "*"

// RequireRole is a convenience for building descriptors.
func RequireRole(role session.Role) *session.Role { return &role }

// RequireAuth marks a descriptor as needing any authenticated identity.
func RequireAuth() *session.Role { return RequireRole(RoleAny) }

// Table is the ordered routing configuration, fixed at startup. Matching is
// first-match-wins.
type Table struct {
	routes []Descriptor
}

// NewTable validates the descriptors and builds a table. Duplicate
// method+pattern pairs are rejected.
func NewTable(routes []Descriptor) (*Table, error) {
	seen := make(map[string]struct{}, len(routes))
	for _, d := range routes {
		if d.Pattern == "" || !strings.HasPrefix(d.Pattern, "/") {
			return nil, fmt.Errorf("route %q: pattern must start with /", d.Pattern)
		}
		if d.Method == "" {
			return nil, fmt.Errorf("route %q: method is required", d.Pattern)
		}
		key := d.Method + " " + d.Pattern
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate route %s", key)
		}
		seen[key] = struct{}{}
	}
	return &Table{routes: append([]Descriptor(nil), routes...)}, nil
}

// Match returns the first descriptor matching the request, or nil.
func (t *Table) Match(method, path string) *Descriptor {
	for i := range t.routes {
		if t.routes[i].matches(method, path) {
			return &t.routes[i]
		}
	}
	return nil
}

// =============================================================================
// Access guard
// =============================================================================

// Allowed reports whether the session may use the route: true when the route
// requires no role, or the session identity holds exactly the required role.
func Allowed(d *Descriptor, s *session.Session) bool {
	if d.RequiredRole == nil {
		return true
	}
	if *d.RequiredRole == RoleAny {
		return s.Authenticated()
	}
	return s.HasRole(*d.RequiredRole)
}

// LoginPath is where unauthenticated page requests are redirected.
const LoginPath = "/login"

// Deny writes the denial response for a route the session may not use:
// unauthenticated page requests redirect to the login page, unauthenticated
// API requests get 401, and authenticated requests with the wrong role get
// 403 regardless of class.
func Deny(w http.ResponseWriter, r *http.Request, d *Descriptor, s *session.Session) {
	if !s.Authenticated() {
		if d.Class == ClassPage {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		httputil.Unauthorized(w, "")
		return
	}
	httputil.Forbidden(w, "")
}
