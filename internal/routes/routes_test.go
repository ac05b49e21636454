package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storefronthq/gateway/internal/session"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	admin := RequireRole(session.RoleAdmin)
	auth := RequireAuth()
	table, err := NewTable([]Descriptor{
		{Method: "GET", Pattern: "/", Target: TargetLocal, Class: ClassPage},
		{Method: "GET", Pattern: "/product/{id}", Target: TargetLocal, Class: ClassPage},
		{Method: "GET", Pattern: "/cart", RequiredRole: auth, Target: TargetLocal, Class: ClassPage},
		{Method: "GET", Pattern: "/admin", RequiredRole: admin, Target: TargetLocal, Class: ClassPage},
		{Method: "POST", Pattern: "/api/products/*", RequiredRole: admin, Target: TargetCatalog, Class: ClassAPI},
		{Method: "*", Pattern: "/api/products/*", Target: TargetCatalog, Class: ClassAPI},
		{Method: "*", Pattern: "/api/orders/*", Target: TargetOrder, Class: ClassAPI},
	})
	if err != nil {
		t.Fatalf("NewTable error: %v", err)
	}
	return table
}

func TestMatch(t *testing.T) {
	table := testTable(t)

	cases := []struct {
		name       string
		method     string
		path       string
		wantTarget Target
		wantNil    bool
	}{
		{name: "exact", method: "GET", path: "/", wantTarget: TargetLocal},
		{name: "segment_placeholder", method: "GET", path: "/product/42", wantTarget: TargetLocal},
		{name: "placeholder_depth_mismatch", method: "GET", path: "/product/42/reviews", wantNil: true},
		{name: "prefix_bare", method: "GET", path: "/api/products", wantTarget: TargetCatalog},
		{name: "prefix_deep", method: "GET", path: "/api/products/7/stock", wantTarget: TargetCatalog},
		{name: "wildcard_method", method: "PATCH", path: "/api/orders/3", wantTarget: TargetOrder},
		{name: "unmatched", method: "GET", path: "/api/unknown/1", wantNil: true},
		{name: "method_mismatch", method: "POST", path: "/cart", wantNil: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := table.Match(tc.method, tc.path)
			if tc.wantNil {
				if d != nil {
					t.Fatalf("matched %s %s, want no match", d.Method, d.Pattern)
				}
				return
			}
			if d == nil {
				t.Fatal("no match")
			}
			if d.Target != tc.wantTarget {
				t.Fatalf("target = %s, want %s", d.Target, tc.wantTarget)
			}
		})
	}
}

func TestMatchFirstWins(t *testing.T) {
	table := testTable(t)

	// POST hits the admin-gated descriptor registered before the catch-all.
	d := table.Match("POST", "/api/products/7")
	if d == nil || d.RequiredRole == nil || *d.RequiredRole != session.RoleAdmin {
		t.Fatalf("POST /api/products/7 should hit the admin-gated route, got %+v", d)
	}

	// Other methods fall through to the ungated catch-all.
	d = table.Match("GET", "/api/products/7")
	if d == nil || d.RequiredRole != nil {
		t.Fatalf("GET /api/products/7 should hit the open catch-all, got %+v", d)
	}
}

func TestNewTableRejectsBadDescriptors(t *testing.T) {
	if _, err := NewTable([]Descriptor{{Method: "GET", Pattern: "no-slash"}}); err == nil {
		t.Fatal("expected error for pattern without leading slash")
	}
	if _, err := NewTable([]Descriptor{{Pattern: "/x"}}); err == nil {
		t.Fatal("expected error for missing method")
	}
	if _, err := NewTable([]Descriptor{
		{Method: "GET", Pattern: "/x"},
		{Method: "GET", Pattern: "/x"},
	}); err == nil {
		t.Fatal("expected error for duplicate route")
	}
}

func TestAllowed(t *testing.T) {
	admin := RequireRole(session.RoleAdmin)
	auth := RequireAuth()

	anonymous := &session.Session{}
	customer := &session.Session{ID: "s1", Identity: &session.Identity{ID: 1, Role: session.RoleCustomer}}
	root := &session.Session{ID: "s2", Identity: &session.Identity{ID: 2, Role: session.RoleAdmin}}

	cases := []struct {
		name string
		d    Descriptor
		sess *session.Session
		want bool
	}{
		{"open_route_anonymous", Descriptor{}, anonymous, true},
		{"auth_route_anonymous", Descriptor{RequiredRole: auth}, anonymous, false},
		{"auth_route_customer", Descriptor{RequiredRole: auth}, customer, true},
		{"auth_route_admin", Descriptor{RequiredRole: auth}, root, true},
		{"admin_route_customer", Descriptor{RequiredRole: admin}, customer, false},
		{"admin_route_admin", Descriptor{RequiredRole: admin}, root, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(&tc.d, tc.sess); got != tc.want {
				t.Fatalf("Allowed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDeny(t *testing.T) {
	anonymous := &session.Session{}
	customer := &session.Session{ID: "s1", Identity: &session.Identity{ID: 1, Role: session.RoleCustomer}}

	t.Run("anonymous_page_redirects_to_login", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		Deny(rr, req, &Descriptor{Class: ClassPage}, anonymous)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != LoginPath {
			t.Fatalf("location = %q, want %q", loc, LoginPath)
		}
	})

	t.Run("anonymous_api_gets_401", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		Deny(rr, req, &Descriptor{Class: ClassAPI}, anonymous)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rr.Code)
		}
	})

	t.Run("wrong_role_gets_403_even_on_pages", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		Deny(rr, req, &Descriptor{Class: ClassPage}, customer)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rr.Code)
		}
	})
}
