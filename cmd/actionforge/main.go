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

	afhttp "github.com/Strob0t/ActionForge/internal/adapter/http"
	"github.com/Strob0t/ActionForge/internal/adapter/litellm"
	afmcp "github.com/Strob0t/ActionForge/internal/adapter/mcp"
	afnats "github.com/Strob0t/ActionForge/internal/adapter/nats"
	"github.com/Strob0t/ActionForge/internal/adapter/natskv"
	afotel "github.com/Strob0t/ActionForge/internal/adapter/otel"
	"github.com/Strob0t/ActionForge/internal/adapter/postgres"
	"github.com/Strob0t/ActionForge/internal/adapter/ristretto"
	"github.com/Strob0t/ActionForge/internal/adapter/tiered"
	"github.com/Strob0t/ActionForge/internal/adapter/ws"
	"github.com/Strob0t/ActionForge/internal/config"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
	"github.com/Strob0t/ActionForge/internal/logger"
	"github.com/Strob0t/ActionForge/internal/middleware"
	"github.com/Strob0t/ActionForge/internal/port/notifier"
	"github.com/Strob0t/ActionForge/internal/resilience"
	"github.com/Strob0t/ActionForge/internal/service"
)

const (
	directoryCacheBucket = "DIRECTORY_CACHE"
	requestTimeout       = 2 * time.Minute
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
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
	cfg, err := config.LoadWithFlags(args)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"model", cfg.Generation.Model,
		"default_policy", cfg.Policy.DefaultProfile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOtel, err := afotel.Setup(ctx, afotel.Config{
		Endpoint:    cfg.OTEL.Endpoint,
		ServiceName: cfg.OTEL.ServiceName,
		Insecure:    cfg.OTEL.Insecure,
		SampleRate:  cfg.OTEL.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	metrics, err := afotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := afnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	idemKV, err := queue.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}
	cacheKV, err := queue.KeyValue(ctx, directoryCacheBucket, cfg.Cache.DirectoryTTL)
	if err != nil {
		return fmt.Errorf("directory cache bucket: %w", err)
	}

	// Directory cache: ristretto in process, NATS KV shared between replicas.
	l1, err := ristretto.NewMB(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	dirCache := tiered.New(l1, natskv.New(cacheKV), cfg.Cache.DirectoryTTL)

	// --- Model backend ---

	hub := ws.NewHub(cfg.Server.CORSOrigin)
	defer hub.Close()

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	breaker.OnStateChange(func(from, to resilience.State) {
		slog.Warn("model backend circuit changed", "from", from, "to", to)
		hub.BroadcastEvent(ctx, ws.EventBackendState, ws.BackendStateEvent{From: string(from), To: string(to)})
	})

	llm := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
	llm.SetBreaker(breaker)
	gen := litellm.NewGenerator(llm, litellm.GeneratorConfig{
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Timeout:     cfg.Generation.Timeout,
	})

	models := service.NewModelRegistry(llm, hub, cfg.Generation.Model, cfg.LiteLLM.ModelRefresh)
	models.Start(ctx)

	// --- Services ---

	custom, err := policy.LoadFromDirectory(cfg.Policy.CustomDir)
	if err != nil {
		return fmt.Errorf("policy profiles: %w", err)
	}
	policies := service.NewPolicyService(cfg.Policy.DefaultProfile, custom)
	slog.Info("policy profiles loaded", "custom", len(custom), "default", cfg.Policy.DefaultProfile)

	store := postgres.NewStore(pool)
	directory := service.NewCachedDirectory(store, dirCache, cfg.Cache.DirectoryTTL)

	engine := service.NewEngine(gen,
		service.WithMetrics(metrics),
		service.WithAppendFollowups(cfg.Orchestrator.AppendFollowups),
	)
	proposals := service.NewProposalService(engine, policies, store, hub, queue)
	alerts, err := newNotificationService(cfg.Notification)
	if err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	if alerts.NotifierCount() > 0 {
		proposals.SetNotifications(alerts)
		slog.Info("review alerts enabled", "notifiers", alerts.NotifierCount())
	}
	ingestor := service.NewIngestor(engine, directory, cfg.Orchestrator.MinIngestLength)
	batch := service.NewBatchRunner(engine, cfg.Orchestrator.MaxParallel)

	if cfg.NATS.Intake {
		stopIntake, err := service.NewIntake(queue, proposals).Start(ctx)
		if err != nil {
			return fmt.Errorf("intake: %w", err)
		}
		defer stopIntake()
	}

	// --- MCP ---

	var mcpSrv *afmcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = afmcp.NewServer(afmcp.ServerConfig{
			Addr:    ":" + cfg.MCP.Port,
			Name:    "actionforge",
			Version: afhttp.Version,
			APIKey:  cfg.MCP.APIKey,
		}, afmcp.ServerDeps{
			Proposer:  proposals,
			Proposals: proposals,
			Policies:  policies,
			Ingester:  ingestor,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	// --- HTTP ---

	handlers := &afhttp.Handlers{
		Proposals: proposals,
		Policies:  policies,
		Ingestor:  ingestor,
		Batch:     batch,
		Directory: directory,
		Models:    models,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	limiter.StartCleanup(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)

	auth := middleware.BearerKey(cfg.Server.APIKey)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(afhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(afhttp.SecurityHeaders)
	r.Use(afhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(afotel.HTTPMiddleware(cfg.OTEL.ServiceName))

	r.Get("/health", afhttp.HealthHandler(afhttp.HealthChecks{
		Postgres: pool,
		NATS:     queue,
		LiteLLM:  llm,
	}))

	r.With(auth).Get("/ws", hub.HandleWS)

	afhttp.MountRoutes(r, handlers,
		auth,
		limiter.Handler,
		middleware.Idempotency(idemKV),
		chimw.Timeout(requestTimeout),
	)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      requestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if mcpSrv != nil {
		if err := mcpSrv.Stop(shutdownCtx); err != nil {
			slog.Error("mcp shutdown", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := queue.Drain(); err != nil {
		slog.Error("nats drain", "error", err)
	}
	return nil
}

// newNotificationService builds one notifier per configured webhook.
func newNotificationService(cfg config.Notification) (*service.NotificationService, error) {
	webhooks := map[string]string{
		"slack":   cfg.SlackWebhookURL,
		"discord": cfg.DiscordWebhookURL,
	}
	var notifiers []notifier.Notifier
	for _, name := range notifier.Available() {
		url := webhooks[name]
		if url == "" {
			continue
		}
		n, err := notifier.New(name, url)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	return service.NewNotificationService(notifiers, cfg.EnabledEvents), nil
}
