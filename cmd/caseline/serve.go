package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/ageniuscoder/caseline/backend/internal/cases"
	"github.com/ageniuscoder/caseline/backend/internal/chat"
	"github.com/ageniuscoder/caseline/backend/internal/config"
	"github.com/ageniuscoder/caseline/backend/internal/conversations"
	"github.com/ageniuscoder/caseline/backend/internal/feature"
	"github.com/ageniuscoder/caseline/backend/internal/httpx"
	"github.com/ageniuscoder/caseline/backend/internal/logging"
	"github.com/ageniuscoder/caseline/backend/internal/messages"
	"github.com/ageniuscoder/caseline/backend/internal/profile"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func runServe(ctx context.Context, cfg config.Config, migrate bool) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if migrate {
		if err := db.Migrate(); err != nil {
			return err
		}
		logger.Info("migration completed", "driver", cfg.DBDriver)
	}

	store := db.Store()
	hub := chat.NewHub(store, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           withCORS(cfg.CORSOrigin, newRouter(cfg, hub, store, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// newRouter mounts every route on a fresh engine.
func newRouter(cfg config.Config, hub *chat.Hub, store storage.Store, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.Logger(logger))

	r.GET("/health", func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			httpx.Err(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		httpx.OK(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authn := auth.Authenticator{Secret: cfg.JWTSecret, Users: store}
	chat.RegisterWS(&r.RouterGroup, hub, authn, cfg.WSSendBuffer)

	limit := httpx.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	users.RegisterPublic(r.Group("/auth", limit), store, cfg, logger)

	api := r.Group("/api", limit, authn.Middleware())
	messages.Register(api, hub, logger)
	conversations.Register(api, hub, logger)
	cases.Register(api, hub, logger)
	profile.Register(api, hub)
	feature.Register(api, hub, logger)
	return r
}

func withCORS(origins string, h http.Handler) http.Handler {
	allowed := strings.Split(origins, ",")
	for i := range allowed {
		allowed[i] = strings.TrimSpace(allowed[i])
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})(h)
}
