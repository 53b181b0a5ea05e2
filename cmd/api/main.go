package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/livelihood-backend/api/routes"
	"github.com/angelmondragon/livelihood-backend/internal/applications"
	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/internal/auth"
	"github.com/angelmondragon/livelihood-backend/internal/beneficiaries"
	"github.com/angelmondragon/livelihood-backend/internal/dashboard"
	"github.com/angelmondragon/livelihood-backend/internal/notifications"
	"github.com/angelmondragon/livelihood-backend/internal/programs"
	"github.com/angelmondragon/livelihood-backend/internal/users"
	"github.com/angelmondragon/livelihood-backend/pkg/auth/session"
	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/angelmondragon/livelihood-backend/pkg/metrics"
	"github.com/angelmondragon/livelihood-backend/pkg/migrate"
	"github.com/angelmondragon/livelihood-backend/pkg/pubsub"
	"github.com/angelmondragon/livelihood-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api exited with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.AutoUp(ctx, cfg, dbClient, logg); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	closers = append(closers, redisClient.Close)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	lifecycle := metrics.NewLifecycleMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	programRepo := programs.NewRepository(conn)
	applicationRepo := applications.NewRepository(conn)
	beneficiaryRepo := beneficiaries.NewRepository(conn)
	auditRepo := audit.NewRepository(conn)
	notificationRepo := notifications.NewRepository(conn)

	recorder := audit.NewRecorder(auditRepo, logg, lifecycle)

	dispatchParams := notifications.DispatcherParams{
		Repo:    notificationRepo,
		Users:   userRepo,
		Metrics: lifecycle,
		Logger:  logg,
	}
	if cfg.FeatureFlags.EmailDispatch && cfg.GCP.ProjectID != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		closers = append(closers, psClient.Close)
		publisher, err := pubsub.NewEmailPublisher(psClient, cfg.PubSub.PublishTimeout)
		if err != nil {
			return err
		}
		dispatchParams.Email = publisher
	} else {
		logg.Info(ctx, "email dispatch disabled, notifications stay in-app")
	}
	dispatcher, err := notifications.NewDispatcher(dispatchParams)
	if err != nil {
		return err
	}

	authParams := auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Audit:          recorder,
		Notifier:       dispatcher,
		Metrics:        lifecycle,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	}
	if cfg.FeatureFlags.FederatedLogin {
		verifier, err := auth.NewGoogleVerifier(cfg.Federated.Audience)
		if err != nil {
			return err
		}
		authParams.Verifier = verifier
	}
	authService, err := auth.NewService(authParams)
	if err != nil {
		return err
	}

	if cfg.Bootstrap.Enabled() {
		created, err := auth.EnsureSuperAdmin(ctx, userRepo, cfg.Bootstrap, cfg.Password, logg)
		if err != nil {
			return err
		}
		if created {
			logg.Info(ctx, "bootstrap super admin created")
		}
	}

	usersService, err := users.NewService(users.ServiceParams{
		DB:             dbClient,
		Repo:           userRepo,
		Audit:          recorder,
		Metrics:        lifecycle,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	programsService, err := programs.NewService(programs.ServiceParams{
		DB:      dbClient,
		Repo:    programRepo,
		Audit:   recorder,
		Metrics: lifecycle,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	applicationsService, err := applications.NewService(applications.ServiceParams{
		DB:       dbClient,
		Repo:     applicationRepo,
		Audit:    recorder,
		Notifier: dispatcher,
		Metrics:  lifecycle,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	beneficiariesService, err := beneficiaries.NewService(beneficiaries.ServiceParams{
		DB:       dbClient,
		Repo:     beneficiaryRepo,
		Audit:    recorder,
		Notifier: dispatcher,
		Metrics:  lifecycle,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	notificationsService, err := notifications.NewService(notificationRepo)
	if err != nil {
		return err
	}

	auditService, err := audit.NewService(auditRepo)
	if err != nil {
		return err
	}

	dashboardService, err := dashboard.NewService(dashboard.ServiceParams{
		Users:         userRepo,
		Programs:      programRepo,
		Applications:  applicationRepo,
		Beneficiaries: beneficiaryRepo,
		Records:       dashboard.NewRepository(conn),
		Database:      dbClient,
		Redis:         redisClient,
		Logger:        logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			httpMetrics,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			authService,
			usersService,
			programsService,
			applicationsService,
			beneficiariesService,
			notificationsService,
			auditService,
			dashboardService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serveErr
}
