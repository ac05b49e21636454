package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/storefronthq/gateway/internal/backend"
	"github.com/storefronthq/gateway/internal/errors"
	"github.com/storefronthq/gateway/internal/middleware"
	"github.com/storefronthq/gateway/internal/session"
)

// credentials is the login/register request body, accepted as JSON or form
// data.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

func readCredentials(r *http.Request) (credentials, error) {
	var creds credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeBody(r, &creds); err != nil {
			return creds, errors.ValidationFailed("invalid request body")
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return creds, errors.ValidationFailed("invalid form data")
		}
		creds.Username = r.PostFormValue("username")
		creds.Password = r.PostFormValue("password")
	}

	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return creds, errors.ValidationFailed("username and password are required")
	}
	return creds, nil
}

// =============================================================================
// Auth Handlers
// =============================================================================

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	s.renderer.Render(w, http.StatusOK, "login", pageData(sess, map[string]any{"error": nil}))
}

// handleLogin authenticates against the identity service, issues the
// session, and redirects by role: admins land on the dashboard, everyone
// else on the home page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	creds, err := readCredentials(r)
	if err != nil {
		s.renderer.Render(w, http.StatusBadRequest, "login", pageData(sess, map[string]any{
			"error": errors.GetServiceError(err).Message,
		}))
		return
	}

	var identity struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	err = s.backends.MustFor(backend.Identity).Post(r.Context(), "/login", creds, &identity)
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Warn("login rejected")
		s.renderer.Render(w, http.StatusUnauthorized, "login", pageData(sess, map[string]any{
			"error": "invalid username or password",
		}))
		return
	}

	role := session.Role(identity.Role)
	if role != session.RoleAdmin {
		role = session.RoleCustomer
	}
	username := identity.Username
	if username == "" {
		username = creds.Username
	}

	if _, err := s.sessions.Issue(w, &session.Identity{ID: identity.ID, Username: username, Role: role}); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to issue session")
		s.renderError(w, sess, "could not sign in")
		return
	}

	if role == session.RoleAdmin {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	s.renderer.Render(w, http.StatusOK, "register", pageData(sess, map[string]any{
		"error":   nil,
		"success": nil,
	}))
}

// handleRegister forwards the registration to the identity service and
// reports the outcome without issuing a session; the user signs in next.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	creds, err := readCredentials(r)
	if err != nil {
		s.renderer.Render(w, http.StatusBadRequest, "register", pageData(sess, map[string]any{
			"error":   errors.GetServiceError(err).Message,
			"success": nil,
		}))
		return
	}

	if err := s.backends.MustFor(backend.Identity).Post(r.Context(), "/register", creds, nil); err != nil {
		message := "registration failed"
		if se := errors.GetServiceError(err); se != nil && se.Code == errors.CodeUpstreamRejected {
			message = se.Message
		}
		s.renderer.Render(w, http.StatusBadRequest, "register", pageData(sess, map[string]any{
			"error":   message,
			"success": nil,
		}))
		return
	}

	s.renderer.Render(w, http.StatusOK, "register", pageData(sess, map[string]any{
		"error":   nil,
		"success": "registration complete, please sign in",
	}))
}

// handleLogout invalidates the session and returns to the home page.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
