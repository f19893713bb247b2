// authorize.go -- Three-legged OAuth 1.0a handshake.
//
// One HTTP endpoint serves both legs. A request without oauth_token + oauth_verifier starts
// the handshake (request token, redirect to the provider); the provider's redirect back
// carries both and completes it (access token).
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// Step identifies which branch of the handshake a call to Authorize took.
type Step int

const (
	// StepPreAuthorized: the client already held a token; nothing was sent.
	StepPreAuthorized Step = iota + 1
	// StepRedirected: a request token was issued and a 302 to the provider was written.
	StepRedirected
	// StepAuthorized: the callback was exchanged for an access token.
	StepAuthorized
)

func (s Step) String() string {
	switch s {
	case StepPreAuthorized:
		return "pre_authorized"
	case StepRedirected:
		return "redirected"
	case StepAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// AuthResult reports the outcome of Authorize.
// User is set for StepPreAuthorized and StepAuthorized; RedirectURL for StepRedirected.
type AuthResult struct {
	Step        Step
	User        *UserToken
	RedirectURL string
}

// Authorize advances the handshake for one inbound request.
//
// next, when non-empty, is carried through the provider round trip as a "next" query
// parameter on the callback URL. w is written to only on the request-token leg.
func (c *Client) Authorize(ctx context.Context, w http.ResponseWriter, r *http.Request, sess Session, next string) (*AuthResult, error) {
	if c.user.Valid() {
		return &AuthResult{Step: StepPreAuthorized, User: c.User()}, nil
	}

	q := r.URL.Query()
	token, verifier := q.Get("oauth_token"), q.Get("oauth_verifier")
	if token != "" && verifier != "" {
		user, err := c.exchange(ctx, sess, token, verifier)
		if err != nil {
			return nil, err
		}
		return &AuthResult{Step: StepAuthorized, User: user}, nil
	}

	redirectURL, err := c.requestToken(ctx, sess, CallbackURL(r, next, c.trustProxy))
	if err != nil {
		return nil, err
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
	return &AuthResult{Step: StepRedirected, RedirectURL: redirectURL}, nil
}

// requestToken obtains a request token, stores it in sess, and returns the provider
// authorization URL the browser must visit.
func (c *Client) requestToken(ctx context.Context, sess Session, callbackURL string) (string, error) {
	cfg := c.signerConfig(callbackURL)

	requestToken, requestSecret, err := cfg.RequestToken()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRequestTokenFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := storePendingToken(ctx, sess, PendingRequestToken{Token: requestToken, Secret: requestSecret}); err != nil {
		return "", err
	}
	slog.Debug("oauth request token issued", "platform", c.provider.Platform, "callback", callbackURL)

	return AuthorizationURL(c.provider.AuthorizeURL(), requestToken, callbackURL), nil
}

// exchange trades the pending request token plus verifier for an access token.
// The pending token is removed from sess on every path past the lookup.
func (c *Client) exchange(ctx context.Context, sess Session, token, verifier string) (_ *UserToken, err error) {
	pending, err := loadPendingToken(ctx, sess)
	if err != nil {
		return nil, err
	}

	defer func() {
		if clearErr := ClearPendingToken(ctx, sess); clearErr != nil {
			slog.Warn("failed to clear pending request token", "platform", c.provider.Platform, "error", clearErr)
			if err == nil {
				err = clearErr
			}
		}
	}()

	if pending.Token != token {
		return nil, ErrTokenMismatch
	}

	cfg := c.signerConfig("")
	accessToken, accessSecret, err := cfg.AccessToken(pending.Token, pending.Secret, verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAccessTokenFailed, err)
	}
	slog.Debug("oauth access token issued", "platform", c.provider.Platform)

	// Expire stays zero: the signer does not surface a token lifetime.
	return &UserToken{
		Platform: c.provider.Platform,
		Token:    accessToken,
		Secret:   accessSecret,
	}, nil
}

// CallbackURL rebuilds the URL the provider should send the browser back to: the inbound
// request's host and path, plus an escaped next parameter when one is given.
// X-Forwarded-Proto is honoured only when trustProxy is set; any client can send it.
func CallbackURL(r *http.Request, next string, trustProxy bool) string {
	scheme := "http"
	if r.TLS != nil || (trustProxy && r.Header.Get("X-Forwarded-Proto") == "https") {
		scheme = "https"
	}
	u := scheme + "://" + r.Host + r.URL.EscapedPath()
	if next != "" {
		u += "?next=" + url.QueryEscape(next)
	}
	return u
}

// AuthorizationURL builds <authorizeURL>?oauth_token=<token>&oauth_callback=<callback>.
// Parameter order is fixed; url.Values.Encode would sort oauth_callback first.
func AuthorizationURL(authorizeURL, requestToken, callbackURL string) string {
	return authorizeURL + "?oauth_token=" + url.QueryEscape(requestToken) +
		"&oauth_callback=" + url.QueryEscape(callbackURL)
}

// IsHandshakeRejection reports whether err came from a callback that did not match the
// session's pending state, as opposed to a provider or transport failure.
func IsHandshakeRejection(err error) bool {
	return errors.Is(err, ErrNoPendingToken) || errors.Is(err, ErrTokenMismatch)
}
