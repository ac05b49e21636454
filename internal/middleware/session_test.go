package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storefronthq/gateway/internal/logging"
	"github.com/storefronthq/gateway/internal/routes"
	"github.com/storefronthq/gateway/internal/session"
)

// stubStore serves a fixed session for every request.
type stubStore struct {
	sess *session.Session
}

func (s *stubStore) Load(*http.Request) *session.Session {
	if s.sess != nil {
		return s.sess
	}
	return &session.Session{}
}

func (s *stubStore) Issue(http.ResponseWriter, *session.Identity) (*session.Session, error) {
	return nil, nil
}

func (s *stubStore) Clear(http.ResponseWriter, *http.Request) {}

func customerSession() *session.Session {
	return &session.Session{ID: "s1", Identity: &session.Identity{ID: 7, Username: "alice", Role: session.RoleCustomer}}
}

func TestSessionAttachesSessionAndLogFields(t *testing.T) {
	store := &stubStore{sess: customerSession()}

	var gotSess *session.Session
	var gotUserID, gotRole string
	handler := Session(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSess = SessionFrom(r.Context())
		gotUserID = logging.GetUserID(r.Context())
		gotRole = logging.GetRole(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !gotSess.Authenticated() || gotSess.Identity.ID != 7 {
		t.Fatalf("session = %+v", gotSess)
	}
	if gotUserID != "7" {
		t.Fatalf("user id in context = %q, want 7", gotUserID)
	}
	if gotRole != string(session.RoleCustomer) {
		t.Fatalf("role in context = %q", gotRole)
	}
}

func TestSessionAnonymousRequestsPassThrough(t *testing.T) {
	handler := Session(&stubStore{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFrom(r.Context()).Authenticated() {
			t.Error("expected anonymous session")
		}
		if logging.GetUserID(r.Context()) != "" {
			t.Error("no user id should be attached for anonymous requests")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSessionFromWithoutMiddlewareIsAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if SessionFrom(req.Context()).Authenticated() {
		t.Fatal("expected anonymous fallback session")
	}
}

func guardTable(t *testing.T) *routes.Table {
	t.Helper()
	table, err := routes.NewTable([]routes.Descriptor{
		{Method: "GET", Pattern: "/cart", RequiredRole: routes.RequireAuth(), Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "GET", Pattern: "/api/cart", RequiredRole: routes.RequireAuth(), Target: routes.TargetLocal, Class: routes.ClassAPI},
		{Method: "GET", Pattern: "/admin", RequiredRole: routes.RequireRole(session.RoleAdmin), Target: routes.TargetLocal, Class: routes.ClassPage},
		{Method: "GET", Pattern: "/", Target: routes.TargetLocal, Class: routes.ClassPage},
	})
	if err != nil {
		t.Fatalf("NewTable error: %v", err)
	}
	return table
}

func TestGuard(t *testing.T) {
	cases := []struct {
		name       string
		sess       *session.Session
		path       string
		wantStatus int
		wantNext   bool
		wantRedir  string
	}{
		{name: "open_route_anonymous", sess: nil, path: "/", wantStatus: http.StatusOK, wantNext: true},
		{name: "anonymous_page_redirects", sess: nil, path: "/cart", wantStatus: http.StatusSeeOther, wantRedir: "/login"},
		{name: "anonymous_api_401", sess: nil, path: "/api/cart", wantStatus: http.StatusUnauthorized},
		{name: "customer_allowed", sess: customerSession(), path: "/cart", wantStatus: http.StatusOK, wantNext: true},
		{name: "customer_admin_403", sess: customerSession(), path: "/admin", wantStatus: http.StatusForbidden},
		{name: "unmatched_passes_through", sess: nil, path: "/api/products/5", wantStatus: http.StatusOK, wantNext: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calledNext := false
			chain := Session(&stubStore{sess: tc.sess})(Guard(guardTable(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calledNext = true
				w.WriteHeader(http.StatusOK)
			})))

			rr := httptest.NewRecorder()
			chain.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if calledNext != tc.wantNext {
				t.Fatalf("next called = %v, want %v", calledNext, tc.wantNext)
			}
			if tc.wantRedir != "" {
				if loc := rr.Header().Get("Location"); loc != tc.wantRedir {
					t.Fatalf("location = %q, want %q", loc, tc.wantRedir)
				}
			}
		})
	}
}
