package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/fieldforcemrser2026/syntoniqa/internal/api/http"
	"github.com/fieldforcemrser2026/syntoniqa/internal/api/http/handlers"
	"github.com/fieldforcemrser2026/syntoniqa/internal/auth"
	"github.com/fieldforcemrser2026/syntoniqa/internal/cascade"
	"github.com/fieldforcemrser2026/syntoniqa/internal/config"
	"github.com/fieldforcemrser2026/syntoniqa/internal/dedupe"
	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/escalation"
	"github.com/fieldforcemrser2026/syntoniqa/internal/events"
	"github.com/fieldforcemrser2026/syntoniqa/internal/notify"
	"github.com/fieldforcemrser2026/syntoniqa/internal/observability"
	"github.com/fieldforcemrser2026/syntoniqa/internal/persistence"
	"github.com/fieldforcemrser2026/syntoniqa/internal/ratelimit"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
	"github.com/fieldforcemrser2026/syntoniqa/internal/service"
	"github.com/fieldforcemrser2026/syntoniqa/internal/sla"
	"github.com/fieldforcemrser2026/syntoniqa/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	interventionRepo := repository.NewInterventionRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)

	if err := seedBootstrapAdmin(ctx, cfg, operatorRepo, logger); err != nil {
		logger.Fatal("failed to seed bootstrap admin", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()

	notifier := notify.NewFanOut(logger, metrics,
		notify.NewInAppChannel(notificationRepo),
		notify.NewPushChannel(cfg.Notification, logger),
		notify.NewChatChannel(cfg.Notification, logger),
		notify.NewEmailChannel(cfg.Notification, logger),
	)

	notificationService := service.NewNotificationService(dispatcher, notifier, logger, cfg.App.TenantID)
	worker.StartNotificationWorker(notificationService)

	keys := dedupe.NewRedisKeyStore(redis.Client, "escalation")

	slaEngine := sla.NewEngine(sla.Dependencies{
		Tickets:   ticketRepo,
		Keys:      keys,
		Notifier:  notifier,
		Logger:    logger,
		Metrics:   metrics,
		SLA:       cfg.SLA,
		DedupeTTL: cfg.Escalation.DedupeTTL,
		TenantID:  cfg.App.TenantID,
	})
	monitor := escalation.NewMonitor(escalation.Dependencies{
		Tickets:       ticketRepo,
		Interventions: interventionRepo,
		Keys:          keys,
		Notifier:      notifier,
		Logger:        logger,
		Metrics:       metrics,
		Escalation:    cfg.Escalation,
		TenantID:      cfg.App.TenantID,
	})
	sweeper := worker.NewSweeper(slaEngine, monitor, logger, cfg.Sweep)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("failed to start sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	resolver := cascade.NewResolver(ticketRepo, dispatcher, logger, metrics)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Tickets:       ticketRepo,
		Interventions: interventionRepo,
		Audit:         auditRepo,
		Deadlines:     slaEngine,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
		TenantID:      cfg.App.TenantID,
	})
	interventionService := service.NewInterventionService(service.InterventionDependencies{
		Interventions: interventionRepo,
		Tickets:       ticketRepo,
		Audit:         auditRepo,
		Resolver:      resolver,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
		TenantID:      cfg.App.TenantID,
	})
	authService := service.NewAuthService(*cfg, operatorRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), operatorRepo)

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerWindow,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, limiter, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, sweeper),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Interventions:  handlers.NewInterventionsHandler(interventionService),
		Notifications:  handlers.NewNotificationsHandler(notificationRepo),
		AuthMiddleware: authMiddleware,
		Registry:       registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// seedBootstrapAdmin creates the first administrator account from
// BOOTSTRAP_ADMIN_EMAIL / BOOTSTRAP_ADMIN_PASSWORD when the operators
// table is empty. Without it there is no way to obtain an elevated token
// on a fresh install.
func seedBootstrapAdmin(ctx context.Context, cfg *config.Config, operators repository.OperatorRepository, logger *zap.Logger) error {
	email := os.Getenv("BOOTSTRAP_ADMIN_EMAIL")
	password := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}
	count, err := operators.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(password, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	admin := &domain.Operator{
		ID:           uuid.NewString(),
		TenantID:     cfg.App.TenantID,
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdministrator,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := operators.Create(ctx, admin); err != nil {
		return err
	}
	logger.Info("bootstrap admin created", zap.String("email", email))
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
