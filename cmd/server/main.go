package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xcyber/portal/internal/api"
	"github.com/xcyber/portal/internal/config"
	"github.com/xcyber/portal/internal/middleware"
	"github.com/xcyber/portal/internal/utils"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed, err := loadSeed(cfg)
	if err != nil {
		log.Fatalf("load seed: %v", err)
	}
	store, closeStore, err := openStore(ctx, cfg, seed)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	sessions, err := openSessions(ctx, cfg)
	if err != nil {
		log.Fatalf("open sessions: %v", err)
	}

	router := api.NewRouter(api.Options{
		Store:         store,
		Sessions:      sessions,
		TokenTTL:      cfg.TokenTTL,
		AutosaveDelay: cfg.AutosaveDelay,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.LocaleMiddleware)

	router.Register(r)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		locale := middleware.LocaleFromContext(r.Context())
		writeJSON(w, map[string]any{
			"ok":         true,
			"name":       "XCyber Portal API",
			"locale":     locale,
			"msg":        utils.T(locale, "health.ok"),
			"store":      cfg.StoreDriver,
			"commit":     cfg.Commit,
			"build_time": cfg.BuildTime,
		})
	})
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"commit": cfg.Commit, "build_time": cfg.BuildTime})
	})
	mountFrontend(r, cfg)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("XCyber portal listening on %s (store=%s, sessions=%s)", cfg.Addr, cfg.StoreDriver, cfg.SessionDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := router.Close(); err != nil {
		log.Printf("flush drafts: %v", err)
	}
	if err := sessions.Close(); err != nil {
		log.Printf("close sessions: %v", err)
	}
	if err := closeStore(); err != nil {
		log.Printf("close store: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode: %v", err)
	}
}

// mountFrontend serves the built SPA from StaticDir, or proxies to a dev
// server when DevFrontendURL is set.
func mountFrontend(r chi.Router, cfg config.Config) {
	if cfg.StaticDir != "" {
		r.With(middleware.NoStore).Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
		return
	}
	if cfg.DevFrontendURL == "" {
		return
	}
	u, err := url.Parse(cfg.DevFrontendURL)
	if err != nil {
		log.Printf("invalid XCYBER_DEV_FRONTEND_URL=%q: %v", cfg.DevFrontendURL, err)
		return
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ModifyResponse = func(res *http.Response) error {
		res.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		return nil
	}
	r.Handle("/*", rp)
}
