package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/MGallo-Code/sociallink/internal/auth"
	"github.com/MGallo-Code/sociallink/internal/config"
	"github.com/MGallo-Code/sociallink/internal/social"
	"github.com/MGallo-Code/sociallink/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	// Set up slog to output as json with configured level
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes (rdb) always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup (rdb.Close) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	// Provider table: built-in defaults plus optional override file.
	providers, err := social.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}
	clients, err := buildClients(cfg, providers)
	if err != nil {
		return err
	}

	// Create shared Redis client; every session handle shares one connection pool.
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up redis client: %w", err)
	}
	defer rdb.Close()

	h := auth.AuthHandler{
		Sessions:     store.NewRedisStore(rdb, cfg.SessionTTL),
		Clients:      clients,
		SessionTTL:   cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure,
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           buildRouter(&h, slog.Default(), cfg.TrustProxy),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// errgroup cancels gCtx on the first error, which also triggers shutdown.
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("sociallink listening", "addr", ln.Addr().String(), "providers", len(clients))
		// Report error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		// Graceful shutdown ! :)
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		// Stops accepting, waits for in-flight requests, or gives up at 30s.
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// buildClients creates one anonymous client per provider that has app credentials.
// Only weibo credentials are configured today; other table entries are skipped with a log line.
func buildClients(cfg *config.Config, providers map[string]social.ProviderConfig) (map[string]*social.Client, error) {
	creds := map[string]social.AppCredentials{
		"weibo": {Key: cfg.WeiboAppKey, Secret: cfg.WeiboAppSecret},
	}
	httpClient := &http.Client{Timeout: cfg.OAuthHTTPTimeout}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	clients := make(map[string]*social.Client, len(names))
	for _, name := range names {
		app, ok := creds[name]
		if !ok {
			slog.Warn("provider has no app credentials, skipping", "provider", name)
			continue
		}
		c, err := social.NewClient(providers[name], app, nil,
			social.WithHTTPClient(httpClient), social.WithTrustedProxy(cfg.TrustProxy))
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		clients[name] = c
	}
	if len(clients) == 0 {
		return nil, errors.New("no provider has app credentials")
	}
	return clients, nil
}

// buildRouter wires all routes and middleware.
// Called from run() and from smoke tests. Client IP headers are honoured only behind a
// trusted proxy.
func buildRouter(h *auth.AuthHandler, logger *slog.Logger, trustProxy bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		// Cookie headers and bodies stay out of access logs.
		LogRequestHeaders:  []string{"Content-Type", "Origin"},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,

		RecoverPanics: false, // middleware.Recoverer below
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.CheckHealth)

	// Session-backed routes
	r.Group(func(r chi.Router) {
		r.Use(h.LoadSession)
		// CSRF reads token injected by LoadSession above
		// DO NOT RUN CSRF BEFORE LoadSession
		r.Use(h.CSRFMiddleware)

		r.Get("/session", h.SessionInfo)
		r.Get("/auth/{provider}", h.Authorize)
		r.Post("/logout", h.Logout)

		r.Get("/api/{provider}/me", h.Me)
		r.Get("/api/{provider}/*", h.Proxy)
		r.Post("/api/{provider}/*", h.Proxy)
		r.Delete("/api/{provider}/*", h.Proxy)
	})

	return r
}
