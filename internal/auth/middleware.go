// middleware.go

// Session loading middleware.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MGallo-Code/sociallink/internal/social"
	"github.com/go-chi/httplog/v3"
	"github.com/gofrs/uuid/v5"
)

// Session fields owned by this package. The social package owns the OAuth fields.
const (
	sessionFieldID   = "session_id"
	sessionFieldCSRF = "csrf_token"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const sessionKey contextKey = "session"
const sessionStoreKey contextKey = "session_key"
const sessionIDKey contextKey = "session_id"
const csrfTokenKey contextKey = "csrf_token"

// SessionFromContext retrieves the request's session handle.
// Returns nil and false if LoadSession hasn't run.
func SessionFromContext(ctx context.Context) (social.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(social.Session)
	return sess, ok
}

// SessionKeyFromContext retrieves the store key (hashed cookie token) of the request's session.
func SessionKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(sessionStoreKey).(string)
	return key, ok
}

// SessionIDFromContext retrieves the non-secret session record ID used in logs.
func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(sessionIDKey).(uuid.UUID)
	return id, ok
}

// CSRFTokenFromContext retrieves session CSRF token from context.
// Returns nil and false if LoadSession hasn't run.
func CSRFTokenFromContext(ctx context.Context) ([]byte, bool) {
	token, ok := ctx.Value(csrfTokenKey).([]byte)
	return token, ok
}

// LoadSession resolves the session cookie to a store-backed session. A missing or malformed
// cookie, or one with no record behind it, gets a brand-new token and cookie; a presented
// value is never adopted as a session. Injects the session, its key, its record ID, and its
// CSRF token into context; returns 500 when the store fails.
func (h *AuthHandler) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if c, err := r.Cookie(cookieName(h.CookieSecure)); err == nil && c.Value != "" {
			k, ok := sessionKeyFromCookie(c.Value)
			if ok {
				key = k
			} else {
				logWarn(r, "discarding session cookie", "reason", "invalid_cookie_encoding")
			}
		}

		if key != "" {
			sess := h.Sessions.Session(key)
			sessionID, csrfToken, ok, err := readSessionMeta(r.Context(), sess)
			if err != nil {
				logError(r, "failed to load session", "error", err)
				InternalServerError(w, r, err)
				return
			}
			if ok {
				next.ServeHTTP(w, r.WithContext(withSessionContext(r.Context(), issuedSession{
					key: key, sess: sess, id: sessionID, csrf: csrfToken,
				})))
				return
			}
			// Expired, never issued by us, or unreadable.
			logWarn(r, "discarding session cookie", "reason", "unknown_session")
		}

		is, err := h.issueSession(r.Context(), uuid.Nil)
		if err != nil {
			logError(r, "failed to start session", "error", err)
			InternalServerError(w, r, err)
			return
		}
		SetSessionCookie(w, is.token, time.Now().Add(h.SessionTTL), h.CookieSecure)
		next.ServeHTTP(w, r.WithContext(withSessionContext(r.Context(), is)))
	})
}

// issuedSession is a session record plus the cookie token that addresses it.
type issuedSession struct {
	token [32]byte
	key   string
	sess  social.Session
	id    uuid.UUID
	csrf  []byte
}

// issueSession creates a session under a fresh random token and writes its record ID and CSRF
// token. uuid.Nil mints a new record ID. The caller sets the cookie once its own writes succeed.
func (h *AuthHandler) issueSession(ctx context.Context, id uuid.UUID) (issuedSession, error) {
	token, tokenHash, err := GenerateToken()
	if err != nil {
		return issuedSession{}, err
	}
	if id == uuid.Nil {
		if id, err = uuid.NewV7(); err != nil {
			return issuedSession{}, fmt.Errorf("generating session id: %w", err)
		}
	}
	csrf, err := GenerateCSRFToken()
	if err != nil {
		return issuedSession{}, err
	}

	key := SessionKey(*tokenHash)
	sess := h.Sessions.Session(key)
	if err := sess.Set(ctx, sessionFieldID, id.String()); err != nil {
		return issuedSession{}, err
	}
	if err := sess.Set(ctx, sessionFieldCSRF, base64.RawURLEncoding.EncodeToString(csrf[:])); err != nil {
		return issuedSession{}, err
	}
	return issuedSession{token: *token, key: key, sess: sess, id: id, csrf: csrf[:]}, nil
}

// withSessionContext injects is into ctx and tags the request log with its record ID.
func withSessionContext(ctx context.Context, is issuedSession) context.Context {
	ctx = context.WithValue(ctx, sessionKey, is.sess)
	ctx = context.WithValue(ctx, sessionStoreKey, is.key)
	ctx = context.WithValue(ctx, sessionIDKey, is.id)
	ctx = context.WithValue(ctx, csrfTokenKey, is.csrf)
	httplog.SetAttrs(ctx, slog.String("session_id", is.id.String()))
	return ctx
}

// readSessionMeta reads the session record ID and CSRF token. ok is false when the record is
// missing or holds unreadable values.
func readSessionMeta(ctx context.Context, sess social.Session) (uuid.UUID, []byte, bool, error) {
	rawID, idOK, err := sess.Get(ctx, sessionFieldID)
	if err != nil {
		return uuid.Nil, nil, false, err
	}
	rawCSRF, csrfOK, err := sess.Get(ctx, sessionFieldCSRF)
	if err != nil {
		return uuid.Nil, nil, false, err
	}
	if !idOK || !csrfOK {
		return uuid.Nil, nil, false, nil
	}

	id, idErr := uuid.FromString(rawID)
	csrf, csrfErr := base64.RawURLEncoding.DecodeString(rawCSRF)
	if idErr != nil || csrfErr != nil || len(csrf) != 32 {
		return uuid.Nil, nil, false, nil
	}
	return id, csrf, true, nil
}
