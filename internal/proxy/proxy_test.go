package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storefronthq/gateway/internal/backend"
	"github.com/storefronthq/gateway/internal/logging"
)

func testLogger() *logging.Logger { return logging.New("test", "error") }

func TestRegisterIsIdempotent(t *testing.T) {
	p := NewRouter(testLogger())

	if err := p.Register("/api/products", backend.Catalog, "http://catalog:3001"); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	if err := p.Register("/api/products", backend.Catalog, "http://catalog:3001"); err != nil {
		t.Fatalf("re-registering the same rule must be a no-op, got %v", err)
	}
	if err := p.Register("/api/products", backend.Order, "http://order:3003"); err == nil {
		t.Fatal("expected error for conflicting rule on a claimed prefix")
	}
	if err := p.Register("no-slash", backend.Order, "http://order:3003"); err == nil {
		t.Fatal("expected error for prefix without leading slash")
	}
}

func TestMatchPrefersLongestPrefix(t *testing.T) {
	p := NewRouter(testLogger())
	mustRegister(t, p, "/api", backend.Catalog, "http://catalog:3001")
	mustRegister(t, p, "/api/orders", backend.Order, "http://order:3003")

	cases := []struct {
		path string
		want backend.Service
		ok   bool
	}{
		{"/api/orders/5", backend.Order, true},
		{"/api/orders", backend.Order, true},
		{"/api/products/5", backend.Catalog, true},
		{"/api", backend.Catalog, true},
		{"/api/ordersextra", backend.Catalog, true}, // prefix match is per segment
		{"/health", "", false},
	}
	for _, tc := range cases {
		got, ok := p.Match(tc.path)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Match(%s) = %s, %v, want %s, %v", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}

func TestServeHTTPForwardsVerbatim(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 9}`))
	}))
	defer upstream.Close()

	p := NewRouter(testLogger())
	mustRegister(t, p, "/api/products", backend.Catalog, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/api/products/9/stock?dry=1", strings.NewReader(`{"delta": 3}`))
	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, req)

	if gotMethod != http.MethodPost {
		t.Fatalf("method = %s", gotMethod)
	}
	if gotPath != "/api/products/9/stock" {
		t.Fatalf("path = %s, want the full inbound path", gotPath)
	}
	if gotQuery != "dry=1" {
		t.Fatalf("query = %s", gotQuery)
	}
	if gotBody != `{"delta": 3}` {
		t.Fatalf("body = %s", gotBody)
	}
	// Upstream status and body are relayed as-is.
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	if rr.Body.String() != `{"id": 9}` {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestServeHTTPUnreachableUpstreamIs502(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	p := NewRouter(testLogger())
	mustRegister(t, p, "/api/payments", backend.Payment, url)

	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/payments/stats", nil))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("expected an error message")
	}
}

func TestServeHTTPNoRuleIs404(t *testing.T) {
	p := NewRouter(testLogger())
	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func mustRegister(t *testing.T, p *Router, prefix string, service backend.Service, baseURL string) {
	t.Helper()
	if err := p.Register(prefix, service, baseURL); err != nil {
		t.Fatalf("Register(%s) error: %v", prefix, err)
	}
}
