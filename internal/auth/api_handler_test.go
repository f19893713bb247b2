package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MGallo-Code/sociallink/internal/social"
	"github.com/MGallo-Code/sociallink/internal/testutil"
)

// apiRequest builds a request routed to /api/{provider}/* inside the test session.
func apiRequest(ms *testutil.MemoryStore, method, target, wildcard string, body *strings.Reader) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, body)
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	return withURLParams(withSession(r, ms), "provider", "weibo", "*", wildcard)
}

// weiboError serves a provider error body with the given status.
func weiboError(status int, msg string, code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error":      msg,
			"error_code": code,
			"request":    r.URL.Path,
		})
	})
}

// staticJSON serves body with 200.
func staticJSON(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

// badGatewayBody decodes a 502 response.
type badGatewayBody struct {
	Message         string `json:"message"`
	ProviderCode    int    `json:"provider_code"`
	ProviderMessage string `json:"provider_message"`
}

func decodeBadGateway(t *testing.T, w *httptest.ResponseRecorder) badGatewayBody {
	t.Helper()
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: expected 502, got %d (%s)", w.Code, w.Body.String())
	}
	var b badGatewayBody
	if err := json.NewDecoder(w.Body).Decode(&b); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	return b
}

// --- Me ---

func TestMe(t *testing.T) {
	t.Run("not authorized returns 401 without provider call", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		w := httptest.NewRecorder()
		h.Me(w, apiRequest(ms, http.MethodGet, "/api/weibo/me", "", nil))

		assertMessage(t, w, http.StatusUnauthorized, "not authorized")
		if fp.APICalls() != 0 {
			t.Errorf("api calls: expected 0, got %d", fp.APICalls())
		}
	})

	t.Run("token for another platform returns 401", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		seedAuthorizedUser(t, ms, "qq")

		w := httptest.NewRecorder()
		h.Me(w, apiRequest(ms, http.MethodGet, "/api/weibo/me", "", nil))

		assertMessage(t, w, http.StatusUnauthorized, "not authorized")
		if fp.APICalls() != 0 {
			t.Errorf("api calls: expected 0, got %d", fp.APICalls())
		}
	})

	t.Run("returns normalized profile", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		seedAuthorizedUser(t, ms, "sina")

		w := httptest.NewRecorder()
		h.Me(w, apiRequest(ms, http.MethodGet, "/api/weibo/me", "", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		var u social.CommonUser
		if err := json.NewDecoder(w.Body).Decode(&u); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		want := social.CommonUser{
			ID:            "1404376560",
			Name:          "zaku",
			Country:       "china",
			Province:      "11",
			City:          "5",
			ImageURL:      "http://tp1.sinaimg.cn/1404376560/50/0/1",
			ImageURLLarge: "http://tp1.sinaimg.cn/1404376560/180/0/1",
			Gender:        true,
			IsSpecial:     true,
			SpecialType:   0,
			Lang:          "zh-cn",
		}
		if u != want {
			t.Errorf("profile:\n got  %+v\n want %+v", u, want)
		}

		if got := fp.LastAPIRequest().URL.Path; got != "/account/verify_credentials.json" {
			t.Errorf("path: expected /account/verify_credentials.json, got %q", got)
		}
		if tok := fp.LastAuthorization()["oauth_token"]; tok != "AT1" {
			t.Errorf("oauth_token: expected AT1, got %q", tok)
		}
	})

	t.Run("provider 401 returns 401", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		fp.API = weiboError(http.StatusUnauthorized, "expired_token", 21327)
		seedAuthorizedUser(t, ms, "sina")

		w := httptest.NewRecorder()
		h.Me(w, apiRequest(ms, http.MethodGet, "/api/weibo/me", "", nil))

		assertMessage(t, w, http.StatusUnauthorized, "provider rejected token")
	})

	t.Run("provider error surfaces code and message", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		fp.API = weiboError(http.StatusBadRequest, "rate limited", 10023)
		seedAuthorizedUser(t, ms, "sina")

		w := httptest.NewRecorder()
		h.Me(w, apiRequest(ms, http.MethodGet, "/api/weibo/me", "", nil))

		b := decodeBadGateway(t, w)
		if b.Message != "provider error" || b.ProviderCode != 10023 || b.ProviderMessage != "rate limited" {
			t.Errorf("body: got %+v", b)
		}
	})

	t.Run("non-JSON body returns 502", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		fp.API = staticJSON("<html>")
		seedAuthorizedUser(t, ms, "sina")

		w := httptest.NewRecorder()
		h.Me(w, apiRequest(ms, http.MethodGet, "/api/weibo/me", "", nil))

		if b := decodeBadGateway(t, w); b.Message != "malformed provider response" {
			t.Errorf("message: got %q", b.Message)
		}
	})

	t.Run("payload without id returns 502", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		fp.API = staticJSON(`{"name":"zaku"}`)
		seedAuthorizedUser(t, ms, "sina")

		w := httptest.NewRecorder()
		h.Me(w, apiRequest(ms, http.MethodGet, "/api/weibo/me", "", nil))

		if b := decodeBadGateway(t, w); b.Message != "unexpected user payload" {
			t.Errorf("message: got %q", b.Message)
		}
	})

	t.Run("unreachable provider returns 502", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		seedAuthorizedUser(t, ms, "sina")
		fp.Close()

		w := httptest.NewRecorder()
		h.Me(w, apiRequest(ms, http.MethodGet, "/api/weibo/me", "", nil))

		if b := decodeBadGateway(t, w); b.Message != "provider unavailable" {
			t.Errorf("message: got %q", b.Message)
		}
	})
}

// --- Proxy ---

func TestProxy(t *testing.T) {
	t.Run("GET forwards query and returns provider JSON", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		fp.API = staticJSON(`{"statuses":[],"total_number":0}`)
		seedAuthorizedUser(t, ms, "sina")

		w := httptest.NewRecorder()
		h.Proxy(w, apiRequest(ms, http.MethodGet, "/api/weibo/statuses/user_timeline?count=5", "statuses/user_timeline", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		if w.Body.String() != `{"statuses":[],"total_number":0}` {
			t.Errorf("body: got %q", w.Body.String())
		}
		req := fp.LastAPIRequest()
		if req.Method != http.MethodGet || req.URL.Path != "/statuses/user_timeline.json" {
			t.Errorf("request: got %s %s", req.Method, req.URL.Path)
		}
		if req.URL.Query().Get("count") != "5" {
			t.Errorf("count: expected 5, got %q", req.URL.Query().Get("count"))
		}
	})

	t.Run("POST forwards form body", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		seedAuthorizedUser(t, ms, "sina")

		form := url.Values{"status": {"hello weibo"}}
		w := httptest.NewRecorder()
		h.Proxy(w, apiRequest(ms, http.MethodPost, "/api/weibo/statuses/update", "statuses/update", strings.NewReader(form.Encode())))

		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		req := fp.LastAPIRequest()
		if req.Method != http.MethodPost || req.URL.Path != "/statuses/update.json" {
			t.Errorf("request: got %s %s", req.Method, req.URL.Path)
		}
		if got := req.PostForm.Get("status"); got != "hello weibo" {
			t.Errorf("status field: expected %q, got %q", "hello weibo", got)
		}
	})

	t.Run("DELETE is forwarded", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		seedAuthorizedUser(t, ms, "sina")

		w := httptest.NewRecorder()
		h.Proxy(w, apiRequest(ms, http.MethodDelete, "/api/weibo/favorites/destroy", "favorites/destroy", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", w.Code)
		}
		if req := fp.LastAPIRequest(); req.Method != http.MethodDelete {
			t.Errorf("method: expected DELETE, got %s", req.Method)
		}
	})

	t.Run("invalid path returns 400 before session lookup", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		seedAuthorizedUser(t, ms, "sina")

		w := httptest.NewRecorder()
		h.Proxy(w, apiRequest(ms, http.MethodGet, "/api/weibo/x", "../oauth/access_token", nil))

		assertMessage(t, w, http.StatusBadRequest, "invalid api path")
		if fp.APICalls() != 0 {
			t.Error("provider should not be contacted")
		}
	})

	t.Run("unsupported method returns 405", func(t *testing.T) {
		h, fp, ms := newTestHandler(t)
		seedAuthorizedUser(t, ms, "sina")

		w := httptest.NewRecorder()
		h.Proxy(w, apiRequest(ms, http.MethodPut, "/api/weibo/statuses/update", "statuses/update", nil))

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("status: expected 405, got %d", w.Code)
		}
		if fp.APICalls() != 0 {
			t.Error("provider should not be contacted")
		}
	})

	t.Run("not authorized returns 401", func(t *testing.T) {
		h, _, ms := newTestHandler(t)
		w := httptest.NewRecorder()
		h.Proxy(w, apiRequest(ms, http.MethodGet, "/api/weibo/statuses/home_timeline", "statuses/home_timeline", nil))

		assertMessage(t, w, http.StatusUnauthorized, "not authorized")
	})
}

// --- validAPIPath ---

func TestValidAPIPath(t *testing.T) {
	tests := []struct {
		api  string
		want bool
	}{
		{"statuses/user_timeline", true},
		{"account/verify_credentials", true},
		{"friendships/create", true},
		{"short-url_2/expand", true},
		{"", false},
		{"/statuses/update", false},
		{"statuses/update/", false},
		{"statuses//update", false},
		{"../oauth/access_token", false},
		{"statuses/update.json", false},
		{"statuses/update?x=1", false},
		{"statuses/%2e%2e", false},
	}
	for _, tt := range tests {
		if got := validAPIPath(tt.api); got != tt.want {
			t.Errorf("validAPIPath(%q): expected %v, got %v", tt.api, tt.want, got)
		}
	}
}
