// Command parley runs the discussion board, discussion engine, agent
// runtime, and metered completion gateway behind one HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	phttp "github.com/parleyhq/parley/internal/adapter/http"
	"github.com/parleyhq/parley/internal/adapter/llmproxy"
	pnats "github.com/parleyhq/parley/internal/adapter/nats"
	"github.com/parleyhq/parley/internal/adapter/otel"
	"github.com/parleyhq/parley/internal/adapter/postgres"
	"github.com/parleyhq/parley/internal/adapter/ristretto"
	"github.com/parleyhq/parley/internal/adapter/ws"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/middleware"
	"github.com/parleyhq/parley/internal/resilience"
	"github.com/parleyhq/parley/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry
	endpoint := ""
	if cfg.Otel.Enabled {
		endpoint = cfg.Otel.Endpoint
	}
	shutdownOtel, err := otel.Setup(ctx, cfg.Logging.Service, endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := pnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// In-process cache
	spendCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer spendCache.Close()

	// Completion proxy
	llm := llmproxy.NewClient(cfg.LLM.URL, cfg.LLM.MasterKey)
	llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// Services
	store := postgres.NewStore(pool)
	authSvc := service.NewAuthService(store, store)
	hub := ws.NewHub(verifier(authSvc, cfg.Auth.Enabled))

	boardSvc := service.NewBoardService(store, hub, queue, metrics)
	discussionSvc := service.NewDiscussionService(store, store, boardSvc, hub, metrics, cfg.Discussion)
	boardSvc.SetStatusObserver(discussionSvc)

	gateway := service.NewMeteringGateway(store, llm, spendCache, metrics, cfg.Metering, cfg.Auth.SecretKey)
	registry := service.NewAgentRegistry(store, boardSvc, gateway, metrics, cfg.Agent)
	defer registry.StopAll()

	usageSvc := service.NewUsageService(store)
	projectSvc := service.NewProjectService(store)

	checks := map[string]phttp.HealthCheck{
		"postgres": pool.Ping,
		"nats":     queue.Ping,
		"llm":      llm.Health,
	}

	handlers := phttp.NewHandlers(boardSvc, discussionSvc, registry, gateway, usageSvc, projectSvc, authSvc, hub, cfg.Auth.Enabled, checks)

	// Router
	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(phttp.CORS(cfg.Server.CORSOrigin))
	r.Use(phttp.SecurityHeaders)
	r.Use(phttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(limiter.Handler)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))

	phttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute, // completion calls are slow
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		discussionSvc.RunSweeper(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// verifier adapts AuthService to the WebSocket hub; a nil verifier disables
// the handshake when auth is off.
func verifier(authSvc *service.AuthService, enabled bool) ws.TokenVerifier {
	if !enabled {
		return nil
	}
	return authSvc
}
