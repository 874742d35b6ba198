package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mdmops/console/internal/app"
	"github.com/mdmops/console/internal/auth"
	"github.com/mdmops/console/internal/emailtracker"
	"github.com/mdmops/console/internal/health"
	"github.com/mdmops/console/internal/home"
	"github.com/mdmops/console/internal/licenses"
	"github.com/mdmops/console/internal/observability"
	"github.com/mdmops/console/internal/platform/cache"
	"github.com/mdmops/console/internal/platform/db"
	"github.com/mdmops/console/internal/platform/docstore"
	"github.com/mdmops/console/internal/prefs"
	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/recons"
	"github.com/mdmops/console/internal/shared"
	"github.com/mdmops/console/internal/users"
	"github.com/mdmops/console/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	loc, _ := cfg.Location()
	targets, _ := cfg.Targets()

	dbpool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	docs := docstore.New(dbpool)
	if err := docs.EnsureSchema(ctx); err != nil {
		logger.Error("ensure document schema", slog.Any("error", err))
		os.Exit(1)
	}
	authRepo := auth.NewRepository(dbpool)
	if err := authRepo.EnsureSchema(ctx); err != nil {
		logger.Error("ensure auth schema", slog.Any("error", err))
		os.Exit(1)
	}
	rbacRepo := rbac.NewRepository(docs)
	if err := rbacRepo.SeedDefaults(ctx, shared.DefaultRolePermissions()); err != nil {
		logger.Warn("seed default roles", slog.Any("error", err))
	}

	sessionManager := shared.NewSessionManager(redisClient, "console_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	events := shared.NewAuthEvents()

	permissionStore := rbac.NewSessionStore(rbacRepo, rbac.NewRedisSnapshotCache(redisClient), rbac.SessionConfig{
		TTL:          cfg.PermissionCacheTTL,
		FallbackRole: cfg.FallbackRole,
	}, logger)
	authEvents, unsubscribe := events.Subscribe(64)
	go permissionStore.Watch(ctx, authEvents, unsubscribe)
	rbacMiddleware := rbac.Middleware{Sessions: permissionStore, Logger: logger}

	metrics := observability.NewMetrics()

	feedReader, feedCache := app.NewFeedReader(cfg, redisClient, metrics.ObserveFeed, logger)
	go feedCache.Run(ctx)

	trackerService := emailtracker.NewService(feedReader, emailtracker.Config{
		SheetID:   cfg.EmailTrackerSheetID,
		SheetName: cfg.EmailTrackerSheetName,
	}, logger)
	reconsService := recons.NewService(feedReader, recons.Config{
		SheetID:   cfg.ReconsSheetID,
		SheetName: cfg.ReconsSheetName,
		Location:  loc,
	}, logger)
	tunnels := recons.TunnelPolicy{AllowedHosts: cfg.ReconsTunnelAllowedHosts}
	reconsBackend := recons.NewBackend(cfg.ReconsBackendURL, cfg.AppRequestTimeout, tunnels)

	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, events, rbacMiddleware, cfg.LoginAttempts)
	rbacHandler := rbac.NewHandler(logger, rbacRepo, events, rbacMiddleware, rbac.DefaultNavigation())

	healthService := health.NewService(
		health.NewChecker(cfg.HealthTimeout, cfg.HealthDegradedAfter, "console"),
		docs, targets, metrics, logger,
	)

	usersService := users.NewService(users.NewRepository(dbpool), rbacRepo, events, cfg.FallbackRole)
	licensesService := licenses.NewService(licenses.NewRepository(docs))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		AuthHandler:         authHandler,
		RBACHandler:         rbacHandler,
		PrefsHandler:        prefs.NewHandler(tunnels.Check),
		HomeHandler:         home.NewHandler(trackerService, reconsService, rbacMiddleware),
		EmailTrackerHandler: emailtracker.NewHandler(trackerService, rbacMiddleware),
		ReconsHandler:       recons.NewHandler(logger, reconsService, reconsBackend, prefs.TunnelURL, rbacMiddleware),
		UsersHandler:        users.NewHandler(logger, usersService, rbacMiddleware),
		LicensesHandler:     licenses.NewHandler(logger, licensesService, rbacMiddleware),
		HealthHandler:       health.NewHandler(logger, healthService, rbacMiddleware),
		JobHandler:          jobs.NewHandler(inspector, logger, rbacMiddleware),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
