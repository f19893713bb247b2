// provider.go -- Provider endpoint table and its loader.
package social

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/dghubble/oauth1"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed providers.toml
var defaultProviders []byte

// SignatureHMACSHA1 is the only signing method the signer is configured with.
const SignatureHMACSHA1 = "HMAC-SHA1"

// ProviderConfig describes one OAuth 1.0a provider: where its token endpoints live,
// the base URL REST paths are joined onto, and the suffix selecting the response format.
type ProviderConfig struct {
	// Platform is the identifier reported in UserToken.Platform (e.g. "sina").
	Platform         string `koanf:"platform" validate:"required"`
	APIURL           string `koanf:"api_url" validate:"required,url"`
	RequestTokenPath string `koanf:"oauth_request_token" validate:"required"`
	AccessTokenPath  string `koanf:"oauth_access_token" validate:"required"`
	AuthorizePath    string `koanf:"oauth_authorize" validate:"required"`
	ResultFormat     string `koanf:"result_format" validate:"oneof=.json"`
	SignatureMethod  string `koanf:"signature_method" validate:"oneof=HMAC-SHA1"`
}

// RequestTokenURL returns the absolute request-token endpoint.
func (p ProviderConfig) RequestTokenURL() string { return p.APIURL + p.RequestTokenPath }

// AccessTokenURL returns the absolute access-token endpoint.
func (p ProviderConfig) AccessTokenURL() string { return p.APIURL + p.AccessTokenPath }

// AuthorizeURL returns the absolute user-authorization endpoint.
func (p ProviderConfig) AuthorizeURL() string { return p.APIURL + p.AuthorizePath }

// Endpoint converts the table entry into the signer's endpoint set.
func (p ProviderConfig) Endpoint() oauth1.Endpoint {
	return oauth1.Endpoint{
		RequestTokenURL: p.RequestTokenURL(),
		AuthorizeURL:    p.AuthorizeURL(),
		AccessTokenURL:  p.AccessTokenURL(),
	}
}

// ResourceURL joins a REST path onto the API base and appends the result format.
func (p ProviderConfig) ResourceURL(api string) string {
	return p.APIURL + api + p.ResultFormat
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags. Empty SignatureMethod is treated as HMAC-SHA1.
func (p *ProviderConfig) Validate() error {
	if p.SignatureMethod == "" {
		p.SignatureMethod = SignatureHMACSHA1
	}
	return validate.Struct(p)
}

// LoadProviders returns the provider table keyed by provider name (e.g. "weibo").
// The embedded defaults load first; when path is non-empty, that TOML file is merged on top,
// so an override only needs to name the keys it changes.
func LoadProviders(path string) (map[string]ProviderConfig, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultProviders), toml.Parser()); err != nil {
		return nil, fmt.Errorf("loading embedded providers: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading providers file: %w", err)
		}
	}

	var raw map[string]ProviderConfig
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling providers: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	providers := make(map[string]ProviderConfig, len(raw))
	for _, name := range names {
		p := raw[name]
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		providers[name] = p
	}
	return providers, nil
}
