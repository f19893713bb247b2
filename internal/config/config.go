// config.go

// Environment variable loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service holding the Weibo app secret.
const KeyringService = "sociallink-weibo"

// Config holds all env configuration vars for sociallink.
type Config struct {
	RedisURL string `validate:"required,url"`
	Port     string `validate:"required,numeric"`
	LogLevel slog.Level

	// CookieSecure marks the session cookie Secure. Default true; only "false" disables
	// (local http development). With Secure off the cookie loses its __Host- prefix.
	CookieSecure bool

	// TrustProxy honours X-Forwarded-Proto and X-Forwarded-For/X-Real-IP. Default false; only
	// "true" enables. Set it only when a reverse proxy that overwrites those headers fronts
	// every request.
	TrustProxy bool

	// SessionTTL bounds both the cookie and the Redis session hash. Default 24h.
	SessionTTL time.Duration `validate:"gt=0"`

	// OAuthHTTPTimeout applies to every call made to the provider. Default 10s.
	OAuthHTTPTimeout time.Duration `validate:"gt=0"`

	// ProvidersFile is an optional TOML file merged over the built-in provider table.
	ProvidersFile string `validate:"omitempty,file"`

	// Weibo application credentials. The secret comes from WEIBO_APP_SECRET, or from the
	// OS keyring when WEIBO_APP_SECRET_KEYRING_USER names the keyring account.
	WeiboAppKey    string `validate:"required"`
	WeiboAppSecret string `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if required variables (REDIS_URL, WEIBO_APP_KEY, app secret) are missing.
func LoadConfig() (*Config, error) {
	// Create config obj
	cfg := &Config{}

	// Attempt to get redis url, if missing, err
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	// Attempt to get port num, default to 7865
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7865"
	}

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	// Default true -- only explicit "false" disables.
	cfg.CookieSecure = os.Getenv("COOKIE_SECURE") != "false"

	// Default false -- only explicit "true" enables.
	cfg.TrustProxy = os.Getenv("TRUST_PROXY") == "true"

	cfg.SessionTTL = envDuration("SESSION_TTL", 24*time.Hour)
	cfg.OAuthHTTPTimeout = envDuration("OAUTH_HTTP_TIMEOUT", 10*time.Second)
	cfg.ProvidersFile = os.Getenv("PROVIDERS_FILE")

	cfg.WeiboAppKey = os.Getenv("WEIBO_APP_KEY")
	if cfg.WeiboAppKey == "" {
		return nil, fmt.Errorf("WEIBO_APP_KEY is required")
	}

	secret, err := appSecret("WEIBO_APP_SECRET", "WEIBO_APP_SECRET_KEYRING_USER")
	if err != nil {
		return nil, err
	}
	cfg.WeiboAppSecret = secret

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// appSecret returns the secret from envKey, falling back to the keyring account named by
// userKey. Env wins when both are set.
func appSecret(envKey, userKey string) (string, error) {
	if v := os.Getenv(envKey); v != "" {
		return v, nil
	}
	user := os.Getenv(userKey)
	if user == "" {
		return "", fmt.Errorf("%s or %s is required", envKey, userKey)
	}

	secret, err := keyring.Get(KeyringService, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("no keyring entry for %s/%s", KeyringService, user)
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring: %w", err)
	}
	if secret == "" {
		return "", fmt.Errorf("empty keyring entry for %s/%s", KeyringService, user)
	}
	return secret, nil
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
