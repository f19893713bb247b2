package social_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MGallo-Code/sociallink/internal/social"
	"github.com/MGallo-Code/sociallink/internal/testutil"
)

// --- AuthorizedUser ---

func TestAuthorizedUser(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trip through session", func(t *testing.T) {
		sess := testutil.NewMemorySession()
		in := &social.UserToken{Platform: "sina", Token: "AT1", Secret: "ATS1", Expire: time.Unix(1700000000, 0).UTC()}

		if err := social.SetAuthorizedUser(ctx, sess, in); err != nil {
			t.Fatalf("SetAuthorizedUser: %v", err)
		}
		got, err := social.AuthorizedUser(ctx, sess)
		if err != nil {
			t.Fatalf("AuthorizedUser: %v", err)
		}
		if got.Token != "AT1" || got.Secret != "ATS1" || got.Platform != "sina" || !got.Expire.Equal(in.Expire) {
			t.Errorf("expected %+v, got %+v", in, got)
		}
	})

	t.Run("absent returns nil without error", func(t *testing.T) {
		got, err := social.AuthorizedUser(ctx, testutil.NewMemorySession())
		if err != nil || got != nil {
			t.Errorf("expected (nil, nil), got (%v, %v)", got, err)
		}
	})

	t.Run("corrupt value errors", func(t *testing.T) {
		sess := testutil.NewMemorySession()
		sess.Values[social.SessionKeyAuthorizedUser] = "{not json"
		if _, err := social.AuthorizedUser(ctx, sess); err == nil {
			t.Error("expected parse error, got nil")
		}
	})

	t.Run("session failure is wrapped", func(t *testing.T) {
		sess := testutil.NewMemorySession()
		boom := errors.New("boom")
		sess.GetErr = boom
		if _, err := social.AuthorizedUser(ctx, sess); !errors.Is(err, boom) {
			t.Errorf("expected wrapped boom, got %v", err)
		}
	})
}

// --- ClearPendingToken ---

func TestClearPendingToken(t *testing.T) {
	sess := testutil.NewMemorySession()
	sess.Values[social.SessionKeyToken] = "RT1"
	sess.Values[social.SessionKeyTokenSecret] = "RTS1"
	sess.Values[social.SessionKeyAuthorizedUser] = "{}"

	if err := social.ClearPendingToken(context.Background(), sess); err != nil {
		t.Fatalf("ClearPendingToken: %v", err)
	}
	if sess.Has(social.SessionKeyToken) || sess.Has(social.SessionKeyTokenSecret) {
		t.Error("pending token should be gone")
	}
	if !sess.Has(social.SessionKeyAuthorizedUser) {
		t.Error("authorized_user must be left alone")
	}
}
