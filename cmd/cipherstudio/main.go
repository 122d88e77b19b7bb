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

	cshttp "github.com/cipherstudio/cipherstudio/internal/adapter/http"
	csnats "github.com/cipherstudio/cipherstudio/internal/adapter/nats"
	"github.com/cipherstudio/cipherstudio/internal/adapter/natskv"
	"github.com/cipherstudio/cipherstudio/internal/adapter/otel"
	"github.com/cipherstudio/cipherstudio/internal/adapter/postgres"
	"github.com/cipherstudio/cipherstudio/internal/adapter/ristretto"
	"github.com/cipherstudio/cipherstudio/internal/adapter/tiered"
	"github.com/cipherstudio/cipherstudio/internal/adapter/ws"
	"github.com/cipherstudio/cipherstudio/internal/config"
	"github.com/cipherstudio/cipherstudio/internal/logger"
	"github.com/cipherstudio/cipherstudio/internal/middleware"
	"github.com/cipherstudio/cipherstudio/internal/port/cache"
	"github.com/cipherstudio/cipherstudio/internal/service"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}

	cfg, yamlPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	log.Info("config loaded",
		"config_file", yamlPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
		"autosave_enabled", cfg.Autosave.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// OpenTelemetry
	otelShutdown, err := otel.Init(ctx, cfg.Otel, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn("otel shutdown", "error", err)
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
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	// NATS JetStream
	queue, err := csnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()
	log.Info("nats connected")

	// Draft cache: in-process ristretto L1, NATS KV L2.
	draftCache, closeCache, err := buildDraftCache(ctx, cfg.Cache, queue)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer closeCache()

	// Services
	store := postgres.NewStore(pool)
	authSvc := service.NewAuthService(store, &cfg.Auth)
	projectSvc := service.NewProjectService(store, queue)
	workspaceSvc := service.NewWorkspaceService(store, queue, draftCache, cfg.Autosave)
	defer workspaceSvc.CloseAll()

	if cfg.Auth.Enabled {
		if err := authSvc.SeedDefaultAdmin(ctx); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		authSvc.StartTokenCleanup(ctx, time.Hour)
	}

	// WebSocket hub and queue fan-out
	hub := ws.NewHub(cfg.Server.CORSOrigin, log)
	relay := ws.NewRelay(queue, hub, log)
	cancelRelay, err := relay.Start(ctx)
	if err != nil {
		return fmt.Errorf("event relay: %w", err)
	}
	defer cancelRelay()

	// HTTP
	handlers := &cshttp.Handlers{
		Projects:  projectSvc,
		Workspace: workspaceSvc,
		Auth:      authSvc,
		Hub:       hub,
		Metrics:   metrics,
		Version:   version,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate)
	defer limiter.StartPrune(10*time.Minute, time.Hour)()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(cshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cshttp.SecurityHeaders)
	r.Use(cshttp.Logger)
	r.Use(otel.HTTPMiddleware("cipherstudio"))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(limiter.Handler)
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))

	cshttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildDraftCache assembles the tiered draft cache. When the NATS KV bucket
// cannot be created, the L1 cache still serves drafts for this instance.
func buildDraftCache(ctx context.Context, cfg config.Cache, queue *csnats.Queue) (cache.Cache, func(), error) {
	l1, err := ristretto.New(cfg.L1MaxSizeMB << 20)
	if err != nil {
		return nil, nil, fmt.Errorf("ristretto: %w", err)
	}

	kv, err := queue.KeyValue(ctx, cfg.L2Bucket, cfg.L2TTL)
	if err != nil {
		slog.Warn("nats kv unavailable, drafts are instance-local", "error", err)
		return l1, l1.Close, nil
	}

	return tiered.New(l1, natskv.New(kv), cfg.L2TTL), l1.Close, nil
}
