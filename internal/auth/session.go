// session.go

// Session token generation and cookie management.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// Cookie names. The __Host- prefix requires Secure, so plain-http development falls back
// to the unprefixed name.
const (
	secureCookieName   = "__Host-session"
	insecureCookieName = "session"
)

// GenerateToken returns 256-bit random session token and its SHA-256 hash.
// Token goes in the cookie; hash names the server-side session.
func GenerateToken() (*[32]byte, *[32]byte, error) {
	var token [32]byte
	_, err := rand.Read(token[:])
	if err != nil {
		return nil, nil, fmt.Errorf("generating token with rand: %w", err)
	}
	hash := sha256.Sum256(token[:])
	return &token, &hash, nil
}

// SessionKey encodes a token hash as the store key for that session.
func SessionKey(tokenHash [32]byte) string {
	return base64.RawURLEncoding.EncodeToString(tokenHash[:])
}

// sessionKeyFromCookie decodes a cookie value and returns its store key.
// ok is false for malformed or wrong-length values.
func sessionKeyFromCookie(value string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) != 32 {
		return "", false
	}
	return SessionKey(sha256.Sum256(raw)), true
}

// cookieName picks the session cookie name for the Secure setting.
func cookieName(secure bool) string {
	if secure {
		return secureCookieName
	}
	return insecureCookieName
}

// SetSessionCookie writes the session cookie with HttpOnly, SameSite=Lax, and Secure when secure.
func SetSessionCookie(w http.ResponseWriter, rawToken [32]byte, expiresAt time.Time, secure bool) {
	// Convert vars and set cookie ( *  v  * )
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(secure),
		Value:    base64.RawURLEncoding.EncodeToString(rawToken[:]),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
	})
}

// ClearSessionCookie overwrites the session cookie with MaxAge=-1 to trigger browser deletion.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	// Essentially just nulling out cookie by setting new expired vals
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(secure),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
