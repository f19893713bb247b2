// handler.go -- HTTP handler wiring, shared dependencies, and session endpoints.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/MGallo-Code/sociallink/internal/social"
	"github.com/go-chi/chi/v5"
)

// SessionStore defines the session backend needed by handlers and middleware.
// Satisfied by *store.RedisStore.
type SessionStore interface {
	// Session returns a handle on the session named id.
	Session(id string) social.Session

	// Destroy removes every field of session id.
	Destroy(ctx context.Context, id string) error

	// CheckHealth reports whether the backend is reachable.
	CheckHealth(ctx context.Context) error
}

// AuthHandler holds dependencies for all HTTP handlers and middleware.
type AuthHandler struct {
	Sessions SessionStore

	// Clients maps the {provider} URL segment to an anonymous client for that provider.
	// A user token is bound per request with WithUser.
	Clients map[string]*social.Client

	// SessionTTL is the cookie lifetime for newly created sessions.
	SessionTTL time.Duration

	// CookieSecure controls the Secure flag and __Host- prefix on the session cookie.
	CookieSecure bool
}

// client resolves the {provider} URL parameter. Writes 404 and returns false when unknown.
func (h *AuthHandler) client(w http.ResponseWriter, r *http.Request) (*social.Client, bool) {
	name := chi.URLParam(r, "provider")
	c, ok := h.Clients[name]
	if !ok {
		logWarn(r, "unknown provider requested", "provider", name)
		NotFound(w, r, "unknown provider")
		return nil, false
	}
	return c, true
}

// authorizedClient binds the session's authorized user to the provider's client.
// Writes 401 and returns false when the session holds no token for this platform.
func (h *AuthHandler) authorizedClient(w http.ResponseWriter, r *http.Request) (*social.Client, bool) {
	c, ok := h.client(w, r)
	if !ok {
		return nil, false
	}
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing session context"))
		return nil, false
	}

	user, err := social.AuthorizedUser(r.Context(), sess)
	if err != nil {
		InternalServerError(w, r, err)
		return nil, false
	}
	if !user.Valid() || user.Platform != c.Platform() {
		Unauthorized(w, r, "not authorized")
		return nil, false
	}
	return c.WithUser(user), true
}

// Logout handles POST /logout. Drops the whole session (authorized user and any pending
// request token) and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	key, ok := SessionKeyFromContext(r.Context())
	if !ok {
		logError(r, "logout called without session in context")
		InternalServerError(w, r, errors.New("missing session context"))
		return
	}

	if err := h.Sessions.Destroy(r.Context(), key); err != nil {
		logError(r, "failed to destroy session", "error", err)
		InternalServerError(w, r, err)
		return
	}

	ClearSessionCookie(w, h.CookieSecure)
	logInfo(r, "user logged out")
	OK(w, "logged out")
}

// SessionInfo handles GET /session. Returns the CSRF token for state-changing calls and
// the platform the session is authorized on, if any.
func (h *AuthHandler) SessionInfo(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing session context"))
		return
	}
	csrfToken, ok := CSRFTokenFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing csrf token in context"))
		return
	}

	user, err := social.AuthorizedUser(r.Context(), sess)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	resp := struct {
		CSRFToken  string     `json:"csrf_token"`
		Authorized bool       `json:"authorized"`
		Platform   string     `json:"platform,omitempty"`
		Expire     *time.Time `json:"expire"`
	}{
		CSRFToken:  base64.RawURLEncoding.EncodeToString(csrfToken),
		Authorized: user.Valid(),
	}
	if user.Valid() {
		resp.Platform = user.Platform
		resp.Expire = expireOrNil(user)
	}
	writeJSON(w, http.StatusOK, resp)
}

// expireOrNil maps the zero "unknown lifetime" sentinel to JSON null.
func expireOrNil(u *social.UserToken) *time.Time {
	if !u.HasExpiry() {
		return nil
	}
	e := u.Expire
	return &e
}
