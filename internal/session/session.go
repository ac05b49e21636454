// Package session implements the per-browser session mechanism. The cookie
// carries only a signed token naming the session ID; the authenticated
// identity lives server-side in memory and is the sole authorization input
// for the gateway.
package session

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the authorization role carried by an identity.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Identity is the authenticated user attached to a session.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Session is the per-browser session state. A session with a nil Identity is
// anonymous.
type Session struct {
	ID       string
	Identity *Identity
}

// Authenticated reports whether the session has an identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.Identity != nil
}

// HasRole reports whether the session identity holds the given role.
func (s *Session) HasRole(role Role) bool {
	return s.Authenticated() && s.Identity.Role == role
}

// Store is the session mechanism consumed by the routing layer.
type Store interface {
	// Load returns the session for the request, or an empty anonymous
	// session when none exists or the token is invalid. It never fails.
	Load(r *http.Request) *Session

	// Issue creates a session holding identity and sets its cookie.
	Issue(w http.ResponseWriter, identity *Identity) (*Session, error)

	// Clear invalidates the request's session and expires its cookie.
	Clear(w http.ResponseWriter, r *http.Request)
}

// =============================================================================
// Cookie-backed store
// =============================================================================

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type record struct {
	identity  *Identity
	expiresAt time.Time
}

// CookieStore keeps session state in memory keyed by an opaque session ID
// carried in an HS256-signed cookie token.
type CookieStore struct {
	mu       sync.RWMutex
	sessions map[string]*record

	secret     []byte
	cookieName string
	ttl        time.Duration
	now        func() time.Time
}

// CookieStoreConfig configures a CookieStore.
type CookieStoreConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
}

// NewCookieStore creates a cookie-backed session store.
func NewCookieStore(cfg CookieStoreConfig) (*CookieStore, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "gateway_session"
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &CookieStore{
		sessions:   make(map[string]*record),
		secret:     []byte(cfg.Secret),
		cookieName: cookieName,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Load implements Store.
func (s *CookieStore) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return &Session{}
	}

	sessionID, err := s.validateToken(cookie.Value)
	if err != nil {
		return &Session{}
	}

	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || s.now().After(rec.expiresAt) {
		return &Session{}
	}

	return &Session{ID: sessionID, Identity: rec.identity}
}

// Issue implements Store.
func (s *CookieStore) Issue(w http.ResponseWriter, identity *Identity) (*Session, error) {
	sessionID := uuid.New().String()
	expiresAt := s.now().Add(s.ttl)

	token, err := s.signToken(sessionID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	s.mu.Lock()
	s.sessions[sessionID] = &record{identity: identity, expiresAt: expiresAt}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return &Session{ID: sessionID, Identity: identity}, nil
}

// Clear implements Store.
func (s *CookieStore) Clear(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.cookieName); err == nil && cookie.Value != "" {
		if sessionID, err := s.validateToken(cookie.Value); err == nil {
			s.mu.Lock()
			delete(s.sessions, sessionID)
			s.mu.Unlock()
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Sweep removes expired sessions.
func (s *CookieStore) Sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.sessions {
		if now.After(rec.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// StartSweeper starts a background goroutine that sweeps expired sessions at
// the given interval.
func (s *CookieStore) StartSweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			s.Sweep()
		}
	}()
}

func (s *CookieStore) signToken(sessionID string, expiresAt time.Time) (string, error) {
	claims := &sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "storefront-gateway",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *CookieStore) validateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", fmt.Errorf("invalid session token")
	}
	return claims.SessionID, nil
}
