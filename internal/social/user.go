// user.go -- Provider profile normalization.
package social

import (
	"encoding/json"
	"strconv"
)

// CommonUser is the provider-independent shape of a user profile.
type CommonUser struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Country       string `json:"country"`
	Province      string `json:"province"`
	City          string `json:"city"`
	ImageURL      string `json:"imageUrl"`
	ImageURLLarge string `json:"imageUrlLarge"`
	Gender        bool   `json:"gender"` // true for "m"
	IsSpecial     bool   `json:"isSpecial"`
	SpecialType   int    `json:"specialType"`
	Lang          string `json:"lang"`
}

// NormalizeUser maps a Weibo user payload (as decoded into map[string]any) to CommonUser.
// ok is false when the payload carries no id; callers should then use the payload as-is.
func NormalizeUser(data map[string]any) (CommonUser, bool) {
	id := stringify(data["id"])
	if id == "" || id == "0" {
		return CommonUser{}, false
	}

	verified, _ := data["verified"].(bool)
	return CommonUser{
		ID:            id,
		Name:          stringify(data["name"]),
		Country:       "china",
		Province:      stringify(data["province"]),
		City:          stringify(data["city"]),
		ImageURL:      stringify(data["profile_image_url"]),
		ImageURLLarge: stringify(data["avatar_large"]),
		Gender:        stringify(data["gender"]) == "m",
		IsSpecial:     verified,
		SpecialType:   toInt(data["verified_type"]),
		Lang:          stringify(data["lang"]),
	}, true
}

// stringify renders JSON scalars as strings. Integral floats print without a fraction,
// so numeric ids and region codes come out as "1404376560" rather than "1.40437656e+09".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// toInt converts a JSON scalar to int; anything unparseable is 0.
func toInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case json.Number:
		n, _ := t.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}
