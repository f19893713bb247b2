package social_test

import (
	"encoding/json"
	"testing"

	"github.com/MGallo-Code/sociallink/internal/social"
)

// --- NormalizeUser ---

func TestNormalizeUser(t *testing.T) {
	t.Run("maps weibo payload to common shape", func(t *testing.T) {
		var data map[string]any
		raw := `{"id":1404376560,"name":"zaku","province":11,"city":"5","profile_image_url":"http://tp1.sinaimg.cn/1404376560/50/0/1",
			"avatar_large":"http://tp1.sinaimg.cn/1404376560/180/0/1","gender":"m","verified":true,"verified_type":-1,"lang":"zh-cn"}`
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			t.Fatal(err)
		}

		u, ok := social.NormalizeUser(data)
		if !ok {
			t.Fatal("expected ok=true")
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
			SpecialType:   -1,
			Lang:          "zh-cn",
		}
		if u != want {
			t.Errorf("expected %+v\n got %+v", want, u)
		}
	})

	t.Run("female and unverified", func(t *testing.T) {
		u, ok := social.NormalizeUser(map[string]any{"id": "7", "gender": "f"})
		if !ok {
			t.Fatal("expected ok=true")
		}
		if u.Gender || u.IsSpecial || u.SpecialType != 0 {
			t.Errorf("got %+v", u)
		}
	})

	t.Run("payload without id is not normalized", func(t *testing.T) {
		if _, ok := social.NormalizeUser(map[string]any{"error": "x"}); ok {
			t.Error("expected ok=false")
		}
		if _, ok := social.NormalizeUser(nil); ok {
			t.Error("nil map: expected ok=false")
		}
	})
}
