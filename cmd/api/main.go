package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/unihelp/helpdesk/internal/api/http"
	"github.com/unihelp/helpdesk/internal/api/http/handlers"
	"github.com/unihelp/helpdesk/internal/auth"
	"github.com/unihelp/helpdesk/internal/clock"
	"github.com/unihelp/helpdesk/internal/config"
	"github.com/unihelp/helpdesk/internal/events"
	"github.com/unihelp/helpdesk/internal/history"
	"github.com/unihelp/helpdesk/internal/notify"
	"github.com/unihelp/helpdesk/internal/observability"
	"github.com/unihelp/helpdesk/internal/persistence"
	"github.com/unihelp/helpdesk/internal/repository"
	"github.com/unihelp/helpdesk/internal/service"
	"github.com/unihelp/helpdesk/internal/sla"
	"github.com/unihelp/helpdesk/internal/worker"
	"github.com/unihelp/helpdesk/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := map[string]handlers.Pinger{}

	stores, err := persistence.OpenTicketStores(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to open ticket stores", zap.Error(err))
	}
	defer stores.Close()
	if stores.Durable() {
		health["postgres"] = stores.DB
	}

	clk := clock.New()

	redis, reachable := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	ledger := repository.NewMemoryAlertLedger(clk.Now)
	if reachable {
		ledger = repository.NewRedisAlertLedger(redis.Client)
		health["redis"] = redis
	}

	var attachmentRepo repository.AttachmentRepository = repository.NewMemoryAttachmentRepository()
	store, err := persistence.NewObjectStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to init object store", zap.Error(err))
	}
	if store != nil {
		attachmentRepo = repository.NewAttachmentRepository(store.Client, store.Bucket)
		health["minio"] = store
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Notification.NATSURL != "" {
		natsNotifier, err := notify.NewNATSNotifier(cfg.Notification, logger)
		if err != nil {
			logger.Warn("notifications fall back to log output", zap.Error(err))
		} else {
			defer natsNotifier.Close()
			notifier = natsNotifier
			health["nats"] = natsNotifier
		}
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	lifecycle := workflow.NewLifecycle(workflow.NewStateMachine(), sla.FromConfig(cfg.SLA))

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:      stores.Tickets,
		SequenceRepo:    stores.Sequences,
		UserRepo:        stores.Users,
		HistoryRepo:     stores.History,
		AttachmentRepo:  attachmentRepo,
		Dispatcher:      dispatcher,
		Lifecycle:       lifecycle,
		Recorder:        history.NewRecorder(),
		Clock:           clk,
		Logger:          logger.Named("tickets"),
		AutoAssign:      cfg.Tickets.AutoAssign,
		MaxUploadBytes:  cfg.Tickets.MaxUploadBytes,
		DefaultPageSize: cfg.Tickets.DefaultPageSize,
		MaxPageSize:     cfg.Tickets.MaxPageSize,
	})
	dashboardService := service.NewDashboardService(service.DashboardDependencies{
		TicketRepo: stores.Tickets,
		Clock:      clk,
		Logger:     logger.Named("dashboard"),
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: stores.Users,
		Logger:   logger.Named("auth"),
	})
	if err := authService.EnsureBootstrapAdmin(ctx, cfg.Auth); err != nil {
		logger.Fatal("failed to provision bootstrap admin", zap.Error(err))
	}

	notificationService := service.NewNotificationService(dispatcher, notifier, logger.Named("notify"), cfg.Notification)
	monitor := worker.NewSLAMonitor(worker.SLAMonitorConfig{
		TicketRepo:  stores.Tickets,
		Ledger:      ledger,
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger.Named("sla-monitor"),
		Metrics:     metrics,
		Interval:    cfg.SLA.MonitorInterval(),
		AlertTTL:    cfg.SLA.AlertTTL(),
		Concurrency: cfg.SLA.MonitorConcurrency,
	})
	workers := worker.StartNotificationWorker(ctx, notificationService, monitor, logger)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), stores.Users)
	validate := validator.New()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             int(cfg.Tickets.MaxUploadBytes) + 1<<20,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, health),
		Auth:           handlers.NewAuthHandler(authService, validate),
		Tickets:        handlers.NewTicketsHandler(ticketService, validate),
		Dashboard:      handlers.NewDashboardHandler(dashboardService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	workers.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
