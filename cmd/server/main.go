package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/dispatch/common/id"
	"basegraph.app/dispatch/common/llm"
	"basegraph.app/dispatch/common/logger"
	"basegraph.app/dispatch/common/otel"
	"basegraph.app/dispatch/core/config"
	"basegraph.app/dispatch/internal/http/handler/webhook"
	"basegraph.app/dispatch/internal/http/middleware"
	httprouter "basegraph.app/dispatch/internal/http/router"
	"basegraph.app/dispatch/internal/metrics"
	"basegraph.app/dispatch/internal/platform"
	"basegraph.app/dispatch/internal/platform/gitlab"
	"basegraph.app/dispatch/internal/platform/linear"
	"basegraph.app/dispatch/internal/session"
	"basegraph.app/dispatch/internal/store"
	"basegraph.app/dispatch/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "dispatch starting",
		"env", cfg.Env,
		"service", cfg.OTel.ServiceName,
		"agents", len(cfg.Agents),
		"max_iterations", cfg.Reasoning.MaxIterations,
		"run_timeout", cfg.AgentRunTimeout)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	reasoner, err := llm.NewClient(llm.Config{
		APIKey:        cfg.Anthropic.APIKey,
		BaseURL:       cfg.Anthropic.BaseURL,
		MaxIterations: cfg.Reasoning.MaxIterations,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create reasoning client", "error", err)
		os.Exit(1)
	}

	registry, err := setupAdapters(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up platform adapters", "error", err)
		os.Exit(1)
	}

	deliveries := setupDeliveryStore(ctx, cfg.Redis)
	defer deliveries.Close()

	m := metrics.New()
	dispatcher := worker.New(session.NewDriver(reasoner), m, worker.Config{RunTimeout: cfg.AgentRunTimeout})

	webhookHandler := webhook.NewHandler(webhook.Config{
		Registry:   registry,
		Selector:   session.NewFirstAgent(cfg.Agents),
		Dispatcher: dispatcher,
		Deliveries: deliveries,
		Metrics:    m,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, webhookHandler, m)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	drainCtx, drainCancel := context.WithTimeout(ctx, 60*time.Second)
	defer drainCancel()
	if err := dispatcher.Stop(drainCtx); err != nil {
		slog.WarnContext(drainCtx, "agent runs still in flight at exit", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupAdapters(ctx context.Context, cfg config.Config) (*platform.Registry, error) {
	registry := platform.NewRegistry(linear.New(cfg.Linear))
	if !cfg.Linear.VerificationEnabled() {
		slog.WarnContext(ctx, "LINEAR_WEBHOOK_SECRET not set, linear webhook signatures are NOT verified")
	}

	if cfg.GitLab.Enabled() {
		adapter, err := gitlab.New(cfg.GitLab)
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
		if cfg.GitLab.WebhookSecret == "" {
			slog.WarnContext(ctx, "GITLAB_WEBHOOK_SECRET not set, gitlab webhook tokens are NOT verified")
		}
	}

	slog.InfoContext(ctx, "platform adapters registered", "platforms", registry.Names())
	return registry, nil
}

func setupDeliveryStore(ctx context.Context, cfg config.RedisConfig) store.DeliveryStore {
	if !cfg.Enabled() {
		slog.InfoContext(ctx, "redis not configured, using in-memory delivery de-duplication")
		return store.NewMemoryDeliveryStore(cfg.DeliveryTTL)
	}

	deliveries, err := store.NewRedisDeliveryStoreFromURL(ctx, cfg.URL, cfg.DeliveryTTL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "delivery_ttl", cfg.DeliveryTTL)
	return deliveries
}

func setupRouter(cfg config.Config, webhookHandler *webhook.Handler, m *metrics.Metrics) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, httprouter.RouterConfig{
		Webhook: webhookHandler,
		Metrics: m,
	})

	return router
}

const banner = `
██████╗ ██╗███████╗██████╗  █████╗ ████████╗ ██████╗██╗  ██╗
██╔══██╗██║██╔════╝██╔══██╗██╔══██╗╚══██╔══╝██╔════╝██║  ██║
██║  ██║██║███████╗██████╔╝███████║   ██║   ██║     ███████║
██║  ██║██║╚════██║██╔═══╝ ██╔══██║   ██║   ██║     ██╔══██║
██████╔╝██║███████║██║     ██║  ██║   ██║   ╚██████╗██║  ██║
╚═════╝ ╚═╝╚══════╝╚═╝     ╚═╝  ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝
`
