// oauth_handler.go -- OAuth 1.0a authorize endpoint.
// One route serves both handshake legs; the social package decides which leg a request is.
// Adding a provider: add a [name] table to providers.toml and a client in main.go.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MGallo-Code/sociallink/internal/social"
)

// Authorize handles GET /auth/{provider}.
//
// First visit: issues a request token and redirects (302) to the provider.
// Provider callback (oauth_token + oauth_verifier): exchanges for an access token, moves the
// caller to a new session token holding it as authorized_user, and destroys the old one.
// Already authorized: no provider call.
// After success, redirects to a safe relative ?next= or returns {platform, expire}.
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	c, ok := h.client(w, r)
	if !ok {
		return
	}
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing session context"))
		return
	}

	user, err := social.AuthorizedUser(r.Context(), sess)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	if user.Valid() && user.Platform == c.Platform() {
		c = c.WithUser(user)
	}

	next := r.URL.Query().Get("next")
	if next != "" && !safeNext(next) {
		logWarn(r, "dropping unsafe next parameter", "next", next)
		next = ""
	}

	res, err := c.Authorize(r.Context(), w, r, sess, next)
	if err != nil {
		h.authError(w, r, c.Platform(), err)
		return
	}

	switch res.Step {
	case social.StepRedirected:
		// Authorize already wrote the 302.
		logDebug(r, "redirected to provider", "platform", c.Platform())
		return
	case social.StepAuthorized:
		if err := h.rotateSession(w, r, res.User); err != nil {
			logError(r, "failed to store authorized user", "error", err)
			InternalServerError(w, r, err)
			return
		}
		logInfo(r, "user authorized", "platform", res.User.Platform)
	case social.StepPreAuthorized:
		logDebug(r, "already authorized", "platform", res.User.Platform)
	}

	if next != "" {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Platform string     `json:"platform"`
		Expire   *time.Time `json:"expire"`
	}{res.User.Platform, expireOrNil(res.User)})
}

// rotateSession stores u under a new session token with a new CSRF token, destroys the
// pre-authorization session, and points the cookie at the new one. The record ID carries over
// so logs stay correlated. No cookie is set unless every store write succeeded.
func (h *AuthHandler) rotateSession(w http.ResponseWriter, r *http.Request, u *social.UserToken) error {
	oldKey, ok := SessionKeyFromContext(r.Context())
	if !ok {
		return errors.New("missing session key in context")
	}
	id, _ := SessionIDFromContext(r.Context())

	is, err := h.issueSession(r.Context(), id)
	if err != nil {
		return fmt.Errorf("issuing session: %w", err)
	}
	if err := social.SetAuthorizedUser(r.Context(), is.sess, u); err != nil {
		return err
	}
	if err := h.Sessions.Destroy(r.Context(), oldKey); err != nil {
		return fmt.Errorf("destroying pre-authorization session: %w", err)
	}
	SetSessionCookie(w, is.token, time.Now().Add(h.SessionTTL), h.CookieSecure)
	return nil
}

// authError maps handshake failures to responses.
// Stale or forged callbacks are the client's fault (400); a refused verifier is 401;
// a provider that won't issue request tokens is 502; anything else is ours.
func (h *AuthHandler) authError(w http.ResponseWriter, r *http.Request, platform string, err error) {
	switch {
	case social.IsHandshakeRejection(err):
		logWarn(r, "oauth callback rejected", "platform", platform, "error", err)
		BadRequest(w, r, "invalid oauth callback")
	case errors.Is(err, social.ErrAccessTokenFailed):
		logWarn(r, "oauth access token exchange failed", "platform", platform, "error", err)
		Unauthorized(w, r, "oauth authorization failed")
	case errors.Is(err, social.ErrRequestTokenFailed):
		logError(r, "oauth request token failed", "platform", platform, "error", err)
		BadGateway(w, r, "provider unavailable", 0, "")
	default:
		InternalServerError(w, r, err)
	}
}

// safeNext reports whether next is a same-origin relative path.
// Rejects absolute URLs, scheme-relative //host, and backslash tricks browsers normalize.
func safeNext(next string) bool {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n") {
		return false
	}
	u, err := url.Parse(next)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
