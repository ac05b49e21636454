// Package middleware provides the HTTP middleware chain for the gateway.
package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/storefronthq/gateway/internal/logging"
	"github.com/storefronthq/gateway/internal/routes"
	"github.com/storefronthq/gateway/internal/session"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionFrom returns the session attached to the request context. Handlers
// behind the Session middleware always get a non-nil session.
func SessionFrom(ctx context.Context) *session.Session {
	if s, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return s
	}
	return &session.Session{}
}

// Session loads the request's session and attaches it to the context, along
// with the user ID and role for logging and backend call propagation. It
// never rejects a request; authorization is the guard's job.
func Session(store session.Store) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := store.Load(r)
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			if sess.Authenticated() {
				ctx = logging.WithUserID(ctx, strconv.FormatInt(sess.Identity.ID, 10))
				ctx = logging.WithRole(ctx, string(sess.Identity.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Guard enforces the routing table's role requirements. Requests matching a
// role-gated descriptor are denied before any handler or backend call runs;
// requests matching no descriptor pass through untouched.
func Guard(table *routes.Table) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := table.Match(r.Method, r.URL.Path)
			if d == nil {
				next.ServeHTTP(w, r)
				return
			}

			sess := SessionFrom(r.Context())
			if !routes.Allowed(d, sess) {
				routes.Deny(w, r, d, sess)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
