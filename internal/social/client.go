// Package social is an OAuth 1.0a consumer for a single social-network API.
//
// client.go -- Client construction, credential types, and package errors.
// Request signing is delegated to github.com/dghubble/oauth1; this package owns the
// handshake around it (authorize.go) and the signed REST helpers (rest.go).
package social

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
)

// ErrNotAuthorized is returned by REST helpers when the client holds no usable token.
// No network call is made in that case.
var ErrNotAuthorized = errors.New("not authorized")

// ErrNoPendingToken is returned on the callback leg when the session has no request token.
var ErrNoPendingToken = errors.New("no pending request token in session")

// ErrTokenMismatch is returned on the callback leg when the provider's oauth_token differs
// from the request token stored in the session.
var ErrTokenMismatch = errors.New("oauth_token does not match pending request token")

// ErrRequestTokenFailed wraps provider or transport failures on the request-token leg.
var ErrRequestTokenFailed = errors.New("request token failed")

// ErrAccessTokenFailed wraps provider or transport failures on the access-token leg,
// including a verifier the provider refuses.
var ErrAccessTokenFailed = errors.New("access token failed")

// ErrMalformedResponse wraps payload parse failures from the provider.
var ErrMalformedResponse = errors.New("malformed provider response")

// DefaultHTTPTimeout bounds request-token and access-token calls when no client is supplied.
const DefaultHTTPTimeout = 10 * time.Second

// AppCredentials are the consumer key and secret issued by the provider.
type AppCredentials struct {
	Key    string
	Secret string
}

// UserToken is an authorized end-user session with the provider.
// A zero Expire means the provider did not state a lifetime.
type UserToken struct {
	Platform string    `json:"platform"`
	Token    string    `json:"token"`
	Secret   string    `json:"secret"`
	Expire   time.Time `json:"expire"`
}

// Valid reports whether the token can sign REST calls (token and secret both set).
func (u *UserToken) Valid() bool {
	return u != nil && u.Token != "" && u.Secret != ""
}

// HasExpiry reports whether Expire holds a real lifetime.
func (u *UserToken) HasExpiry() bool {
	return u != nil && !u.Expire.IsZero()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for token requests and as the base
// transport for signed REST calls. A nil hc keeps the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTrustedProxy makes callback URLs follow X-Forwarded-Proto. Enable only when every
// request arrives through a proxy that sets the header itself.
func WithTrustedProxy(trust bool) Option {
	return func(c *Client) { c.trustProxy = trust }
}

// Client pairs one app with one (optional) user on one provider.
// The base signer config is never mutated after construction; each handshake leg works on
// its own copy, so one Client may serve concurrent requests.
type Client struct {
	provider   ProviderConfig
	app        AppCredentials
	user       *UserToken
	config     oauth1.Config
	httpClient *http.Client
	trustProxy bool
}

// NewClient builds a Client for provider. user may be nil (anonymous client); when it is set
// but incomplete it is ignored, matching the "token and secret or nothing" rule.
func NewClient(provider ProviderConfig, app AppCredentials, user *UserToken, opts ...Option) (*Client, error) {
	if app.Key == "" || app.Secret == "" {
		return nil, fmt.Errorf("app key and secret are required")
	}
	if err := provider.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}

	c := &Client{
		provider:   provider,
		app:        app,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	if user.Valid() {
		c.user = &UserToken{
			Platform: provider.Platform,
			Token:    user.Token,
			Secret:   user.Secret,
			Expire:   user.Expire,
		}
	}

	c.config = oauth1.Config{
		ConsumerKey:    app.Key,
		ConsumerSecret: app.Secret,
		Endpoint:       provider.Endpoint(),
		Signer:         &oauth1.HMACSigner{ConsumerSecret: app.Secret},
		HTTPClient:     c.httpClient,
	}
	return c, nil
}

// Platform returns the provider's platform identifier.
func (c *Client) Platform() string { return c.provider.Platform }

// Provider returns the provider configuration the client was built with.
func (c *Client) Provider() ProviderConfig { return c.provider }

// User returns a copy of the token the client holds, or nil when anonymous.
func (c *Client) User() *UserToken {
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Authorized reports whether REST helpers can be used.
func (c *Client) Authorized() bool { return c.user.Valid() }

// WithUser returns a new Client sharing app and provider config but holding user.
// Used by callers that build one anonymous client at startup and bind a token per request.
func (c *Client) WithUser(user *UserToken) *Client {
	clone := *c
	clone.user = nil
	if user.Valid() {
		clone.user = &UserToken{
			Platform: c.provider.Platform,
			Token:    user.Token,
			Secret:   user.Secret,
			Expire:   user.Expire,
		}
	}
	return &clone
}

// signerConfig returns a private copy of the base config with callbackURL set.
func (c *Client) signerConfig(callbackURL string) *oauth1.Config {
	cfg := c.config
	cfg.CallbackURL = callbackURL
	return &cfg
}
