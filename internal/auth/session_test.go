package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// --- GenerateToken ---

func TestGenerateToken(t *testing.T) {
	t.Run("returns token and hash without error", func(t *testing.T) {
		token, hash, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken returned error: %v", err)
		}
		if token == nil {
			t.Fatal("token should not be nil")
		}
		if hash == nil {
			t.Fatal("hash should not be nil")
		}
	})

	t.Run("hash matches SHA-256 of token", func(t *testing.T) {
		token, hash, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken returned error: %v", err)
		}

		expected := sha256.Sum256(token[:])
		if *hash != expected {
			t.Error("hash does not match SHA-256 of token")
		}
	})
}

// --- SessionKey / sessionKeyFromCookie ---

func TestSessionKeyFromCookie(t *testing.T) {
	t.Run("valid cookie maps to hash of token", func(t *testing.T) {
		token, hash, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken returned error: %v", err)
		}
		key, ok := sessionKeyFromCookie(base64.RawURLEncoding.EncodeToString(token[:]))
		if !ok {
			t.Fatal("valid cookie rejected")
		}
		if key != SessionKey(*hash) {
			t.Errorf("key: expected %q, got %q", SessionKey(*hash), key)
		}
	})

	t.Run("key is not the cookie value", func(t *testing.T) {
		token, _, _ := GenerateToken()
		value := base64.RawURLEncoding.EncodeToString(token[:])
		key, _ := sessionKeyFromCookie(value)
		if key == value {
			t.Error("store key must not equal the raw cookie token")
		}
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		for _, v := range []string{
			"!!!not-base64!!!",
			base64.RawURLEncoding.EncodeToString(make([]byte, 16)),
			base64.RawURLEncoding.EncodeToString(make([]byte, 33)),
			base64.StdEncoding.EncodeToString(make([]byte, 32)), // padded
		} {
			if _, ok := sessionKeyFromCookie(v); ok {
				t.Errorf("sessionKeyFromCookie(%q) should fail", v)
			}
		}
	})
}

// --- Cookies ---

func TestSetSessionCookie(t *testing.T) {
	var token [32]byte
	token[0] = 1

	t.Run("secure cookie uses __Host- prefix", func(t *testing.T) {
		w := httptest.NewRecorder()
		SetSessionCookie(w, token, time.Now().Add(time.Hour), true)

		cookies := w.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected 1 cookie, got %d", len(cookies))
		}
		c := cookies[0]
		if c.Name != "__Host-session" || !c.Secure || !c.HttpOnly || c.Path != "/" || c.Domain != "" {
			t.Errorf("cookie attributes: got %+v", c)
		}
		if c.SameSite != http.SameSiteLaxMode {
			t.Errorf("SameSite: expected Lax, got %v", c.SameSite)
		}
		if c.Value != base64.RawURLEncoding.EncodeToString(token[:]) {
			t.Errorf("value: got %q", c.Value)
		}
	})

	t.Run("insecure cookie drops prefix and Secure", func(t *testing.T) {
		w := httptest.NewRecorder()
		SetSessionCookie(w, token, time.Now().Add(time.Hour), false)

		c := w.Result().Cookies()[0]
		if c.Name != "session" || c.Secure {
			t.Errorf("cookie: got name %q secure %v", c.Name, c.Secure)
		}
	})
}

func TestClearSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()
	ClearSessionCookie(w, true)

	c := w.Result().Cookies()[0]
	if c.Name != "__Host-session" || c.Value != "" || c.MaxAge != -1 {
		t.Errorf("cleared cookie: got %+v", c)
	}
}
