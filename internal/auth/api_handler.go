// api_handler.go -- Signed REST calls on behalf of the session's authorized user.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MGallo-Code/sociallink/internal/social"
	"github.com/go-chi/chi/v5"
)

// maxFormBytes caps POST bodies forwarded to the provider.
const maxFormBytes = 1 << 20

// verifyCredentialsAPI returns the authorized user's profile.
const verifyCredentialsAPI = "account/verify_credentials"

// Me handles GET /api/{provider}/me. Fetches the authorized user's profile and returns it
// in the common-user shape. 401 without an authorized user, 502 on provider failures.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, ok := h.authorizedClient(w, r)
	if !ok {
		return
	}

	var data map[string]any
	if _, err := c.Get(r.Context(), verifyCredentialsAPI, nil, &data); err != nil {
		h.apiError(w, r, verifyCredentialsAPI, err)
		return
	}

	user, ok := social.NormalizeUser(data)
	if !ok {
		logWarn(r, "provider returned unusable user payload", "platform", c.Platform())
		BadGateway(w, r, "unexpected user payload", 0, "")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Proxy handles GET|POST|DELETE /api/{provider}/*. Forwards the call to the provider API
// named by the wildcard (e.g. statuses/user_timeline), signed with the session's token.
// GET forwards the query string, POST the form body. The provider's JSON is returned as-is.
func (h *AuthHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	api := chi.URLParam(r, "*")
	if !validAPIPath(api) {
		BadRequest(w, r, "invalid api path")
		return
	}

	c, ok := h.authorizedClient(w, r)
	if !ok {
		return
	}

	var raw json.RawMessage
	var err error
	switch r.Method {
	case http.MethodGet:
		_, err = c.Get(r.Context(), api, r.URL.Query(), &raw)
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if perr := r.ParseForm(); perr != nil {
			logWarn(r, "failed to parse proxy form", "error", perr)
			BadRequest(w, r, "error decoding request body")
			return
		}
		_, err = c.Post(r.Context(), api, r.PostForm, &raw)
	case http.MethodDelete:
		_, err = c.Delete(r.Context(), api, &raw)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		h.apiError(w, r, api, err)
		return
	}

	logDebug(r, "proxied provider call", "platform", c.Platform(), "api", api)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// apiError maps REST helper failures to responses.
func (h *AuthHandler) apiError(w http.ResponseWriter, r *http.Request, api string, err error) {
	var apiErr *social.APIError
	switch {
	case errors.Is(err, social.ErrNotAuthorized):
		Unauthorized(w, r, "not authorized")
	case errors.As(err, &apiErr):
		logWarn(r, "provider api error", "api", api, "status", apiErr.StatusCode, "code", apiErr.Code, "request", apiErr.Request)
		if apiErr.StatusCode == http.StatusUnauthorized {
			Unauthorized(w, r, "provider rejected token")
			return
		}
		BadGateway(w, r, "provider error", apiErr.Code, apiErr.Message)
	case errors.Is(err, social.ErrMalformedResponse):
		logWarn(r, "malformed provider response", "api", api, "error", err)
		BadGateway(w, r, "malformed provider response", 0, "")
	case errors.Is(err, context.Canceled):
		// Caller went away; nothing useful to write.
		logDebug(r, "provider call cancelled", "api", api)
	default:
		logError(r, "provider call failed", "api", api, "error", err)
		BadGateway(w, r, "provider unavailable", 0, "")
	}
}

// validAPIPath accepts slash-separated segments of letters, digits, underscores, and dashes.
func validAPIPath(api string) bool {
	if api == "" || strings.HasPrefix(api, "/") || strings.HasSuffix(api, "/") {
		return false
	}
	for _, seg := range strings.Split(api, "/") {
		if seg == "" {
			return false
		}
		for _, ch := range seg {
			switch {
			case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_', ch == '-':
			default:
				return false
			}
		}
	}
	return true
}
