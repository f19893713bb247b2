// session.go -- Contract for the caller's per-user web session.
package social

import (
	"context"
	"encoding/json"
	"fmt"
)

// Session keys written and read during the handshake.
const (
	SessionKeyToken          = "oauth_token"
	SessionKeyTokenSecret    = "oauth_token_secret"
	SessionKeyAuthorizedUser = "authorized_user"
)

// Session is the caller's per-end-user session.
// Satisfied by *store.RedisSession and testutil.MemorySession.
type Session interface {
	// Get returns the value stored under key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// PendingRequestToken is the request-token pair held between the redirect-out and
// callback-in legs. Single-use.
type PendingRequestToken struct {
	Token  string
	Secret string
}

// loadPendingToken reads the request-token pair. Returns ErrNoPendingToken if either half is missing.
func loadPendingToken(ctx context.Context, sess Session) (PendingRequestToken, error) {
	token, ok, err := sess.Get(ctx, SessionKeyToken)
	if err != nil {
		return PendingRequestToken{}, fmt.Errorf("reading pending token: %w", err)
	}
	if !ok || token == "" {
		return PendingRequestToken{}, ErrNoPendingToken
	}
	secret, ok, err := sess.Get(ctx, SessionKeyTokenSecret)
	if err != nil {
		return PendingRequestToken{}, fmt.Errorf("reading pending token secret: %w", err)
	}
	if !ok || secret == "" {
		return PendingRequestToken{}, ErrNoPendingToken
	}
	return PendingRequestToken{Token: token, Secret: secret}, nil
}

// storePendingToken writes both halves of the request-token pair.
func storePendingToken(ctx context.Context, sess Session, pt PendingRequestToken) error {
	if err := sess.Set(ctx, SessionKeyToken, pt.Token); err != nil {
		return fmt.Errorf("storing pending token: %w", err)
	}
	if err := sess.Set(ctx, SessionKeyTokenSecret, pt.Secret); err != nil {
		return fmt.Errorf("storing pending token secret: %w", err)
	}
	return nil
}

// ClearPendingToken removes the request-token pair from the session.
func ClearPendingToken(ctx context.Context, sess Session) error {
	if err := sess.Delete(ctx, SessionKeyToken, SessionKeyTokenSecret); err != nil {
		return fmt.Errorf("clearing pending token: %w", err)
	}
	return nil
}

// SetAuthorizedUser stores u as JSON under authorized_user.
func SetAuthorizedUser(ctx context.Context, sess Session, u *UserToken) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshaling authorized user: %w", err)
	}
	if err := sess.Set(ctx, SessionKeyAuthorizedUser, string(raw)); err != nil {
		return fmt.Errorf("storing authorized user: %w", err)
	}
	return nil
}

// AuthorizedUser reads authorized_user. Returns (nil, nil) when the session has none.
func AuthorizedUser(ctx context.Context, sess Session) (*UserToken, error) {
	raw, ok, err := sess.Get(ctx, SessionKeyAuthorizedUser)
	if err != nil {
		return nil, fmt.Errorf("reading authorized user: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var u UserToken
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("parsing authorized user: %w", err)
	}
	return &u, nil
}
