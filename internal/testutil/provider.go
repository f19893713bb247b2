// provider.go
//
// FakeProvider is an httptest OAuth 1.0a provider: request-token and access-token endpoints
// plus a pluggable REST handler. It records what the consumer sent so tests can assert on
// callback URLs, verifiers, and call counts. With ConsumerSecret set, the token endpoints
// also check HMAC-SHA1 signatures and refuse bad ones with 401.
package testutil

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/MGallo-Code/sociallink/internal/social"
)

// Exchange records one access-token request.
type Exchange struct {
	Token    string
	Verifier string

	// SignatureValid is true when ConsumerSecret was set and the request was signed with it
	// plus RequestSecret.
	SignatureValid bool
}

// FakeProvider serves /oauth/request_token, /oauth/access_token and, for every other path,
// API (or a default {"ok":true} body).
type FakeProvider struct {
	Server *httptest.Server

	RequestToken  string
	RequestSecret string
	AccessToken   string
	AccessSecret  string

	// ConsumerSecret enables signature checks on the token endpoints. Empty skips them.
	ConsumerSecret string

	// Non-zero status makes the corresponding token endpoint fail with that code.
	RequestTokenStatus int
	AccessTokenStatus  int

	// API handles REST paths. Nil serves {"ok":true}.
	API http.Handler

	mu        sync.Mutex
	callbacks []string
	exchanges []Exchange
	apiCalls  []*http.Request
	authHdrs  []string
}

// NewFakeProvider starts a provider issuing RT1/RTS1 and AT1/ATS1. Closed via t.Cleanup by callers.
func NewFakeProvider() *FakeProvider {
	f := &FakeProvider{
		RequestToken:  "RT1",
		RequestSecret: "RTS1",
		AccessToken:   "AT1",
		AccessSecret:  "ATS1",
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// Close shuts down the underlying server.
func (f *FakeProvider) Close() { f.Server.Close() }

// Config returns a provider table entry pointing at the fake server.
func (f *FakeProvider) Config() social.ProviderConfig {
	return social.ProviderConfig{
		Platform:         "sina",
		APIURL:           f.Server.URL + "/",
		RequestTokenPath: "oauth/request_token",
		AccessTokenPath:  "oauth/access_token",
		AuthorizePath:    "oauth/authorize",
		ResultFormat:     ".json",
		SignatureMethod:  social.SignatureHMACSHA1,
	}
}

// Callbacks returns the oauth_callback values sent to the request-token endpoint.
func (f *FakeProvider) Callbacks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.callbacks...)
}

// Exchanges returns the access-token requests received.
func (f *FakeProvider) Exchanges() []Exchange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Exchange(nil), f.exchanges...)
}

// APICalls returns the number of REST requests received.
func (f *FakeProvider) APICalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.apiCalls)
}

// LastAPIRequest returns the most recent REST request, or nil.
func (f *FakeProvider) LastAPIRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.apiCalls) == 0 {
		return nil
	}
	return f.apiCalls[len(f.apiCalls)-1]
}

// LastAuthorization returns the parsed OAuth Authorization header of the most recent request.
func (f *FakeProvider) LastAuthorization() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.authHdrs) == 0 {
		return nil
	}
	return ParseOAuthHeader(f.authHdrs[len(f.authHdrs)-1])
}

func (f *FakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	params := ParseOAuthHeader(auth)

	f.mu.Lock()
	f.authHdrs = append(f.authHdrs, auth)
	f.mu.Unlock()

	switch r.URL.Path {
	case "/oauth/request_token":
		f.mu.Lock()
		f.callbacks = append(f.callbacks, params["oauth_callback"])
		status := f.RequestTokenStatus
		f.mu.Unlock()
		if f.ConsumerSecret != "" && !ValidSignature(r, params, f.ConsumerSecret, "") {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		if status != 0 {
			http.Error(w, "request token rejected", status)
			return
		}
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		w.Write([]byte(url.Values{
			"oauth_token":              {f.RequestToken},
			"oauth_token_secret":       {f.RequestSecret},
			"oauth_callback_confirmed": {"true"},
		}.Encode()))

	case "/oauth/access_token":
		signed := f.ConsumerSecret != "" && ValidSignature(r, params, f.ConsumerSecret, f.RequestSecret)
		f.mu.Lock()
		f.exchanges = append(f.exchanges, Exchange{
			Token:          params["oauth_token"],
			Verifier:       params["oauth_verifier"],
			SignatureValid: signed,
		})
		status := f.AccessTokenStatus
		f.mu.Unlock()
		if f.ConsumerSecret != "" && !signed {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		if status != 0 {
			http.Error(w, "access token rejected", status)
			return
		}
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		w.Write([]byte(url.Values{
			"oauth_token":        {f.AccessToken},
			"oauth_token_secret": {f.AccessSecret},
			"user_id":            {"1404376560"},
		}.Encode()))

	default:
		r.ParseForm()
		f.mu.Lock()
		f.apiCalls = append(f.apiCalls, r)
		f.mu.Unlock()
		if f.API != nil {
			f.API.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}
}

// ParseOAuthHeader splits an `OAuth k="v", ...` Authorization header into unescaped pairs.
func ParseOAuthHeader(header string) map[string]string {
	out := make(map[string]string)
	rest, ok := strings.CutPrefix(header, "OAuth ")
	if !ok {
		return out
	}
	for _, part := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		v = strings.Trim(v, `"`)
		if unescaped, err := url.PathUnescape(v); err == nil {
			v = unescaped
		}
		out[k] = v
	}
	return out
}

// ValidSignature recomputes the HMAC-SHA1 signature of r (RFC 5849 section 3.4) from its
// OAuth header params, query, and form body, and compares it with oauth_signature.
func ValidSignature(r *http.Request, params map[string]string, consumerSecret, tokenSecret string) bool {
	if params["oauth_signature_method"] != "HMAC-SHA1" {
		return false
	}

	type pair struct{ k, v string }
	var pairs []pair
	for k, v := range params {
		if k == "oauth_signature" || k == "realm" {
			continue
		}
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range r.URL.Query() {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return false
		}
		for k, vs := range r.PostForm {
			for _, v := range vs {
				pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	normalized := make([]string, len(pairs))
	for i, p := range pairs {
		normalized[i] = p.k + "=" + p.v
	}

	baseURL := "http://" + strings.ToLower(r.Host) + r.URL.EscapedPath()
	base := r.Method + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(normalized, "&"))

	mac := hmac.New(sha1.New, []byte(percentEncode(consumerSecret)+"&"+percentEncode(tokenSecret)))
	mac.Write([]byte(base))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(params["oauth_signature"]))
}

// percentEncode escapes everything outside the RFC 3986 unreserved set, with uppercase hex.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// WeiboUserJSON is a verify_credentials payload in the provider's shape.
const WeiboUserJSON = `{"id":1404376560,"screen_name":"zaku","name":"zaku","province":"11","city":"5",` +
	`"location":"北京 海淀区","profile_image_url":"http://tp1.sinaimg.cn/1404376560/50/0/1",` +
	`"avatar_large":"http://tp1.sinaimg.cn/1404376560/180/0/1","gender":"m","verified":true,` +
	`"verified_type":0,"lang":"zh-cn"}`

// UserAPI serves WeiboUserJSON for account/verify_credentials and {"ok":true} elsewhere.
func UserAPI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/account/verify_credentials.json" {
			w.Write([]byte(WeiboUserJSON))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})
}
