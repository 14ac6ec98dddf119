package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/edutech-ops/chromebook-helpdesk/internal/api/http"
	"github.com/edutech-ops/chromebook-helpdesk/internal/api/http/handlers"
	"github.com/edutech-ops/chromebook-helpdesk/internal/auth"
	"github.com/edutech-ops/chromebook-helpdesk/internal/config"
	"github.com/edutech-ops/chromebook-helpdesk/internal/events"
	"github.com/edutech-ops/chromebook-helpdesk/internal/observability"
	"github.com/edutech-ops/chromebook-helpdesk/internal/persistence"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository"
	"github.com/edutech-ops/chromebook-helpdesk/internal/service"
	"github.com/edutech-ops/chromebook-helpdesk/internal/worker"
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	ruleRepo := repository.NewSLARuleRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)
	reportCache := repository.NewReportCache(rdb.ClientHandle())
	scanLock := repository.NewScanLock(rdb.ClientHandle())

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var notifier service.Notifier
	if webhook := service.NewWebhookNotifier(cfg.Notification); webhook != nil {
		notifier = webhook
	}
	service.NewNotificationService(dispatcher, notifier, cfg.Report.Location(), logger).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:       ticketRepo,
		SLARuleRepo:      ruleRepo,
		HistoryRepo:      historyRepo,
		Cache:            reportCache,
		Dispatcher:       dispatcher,
		DefaultAllowance: cfg.SLA.DefaultAllowance(),
		Logger:           logger,
	})
	slaService := service.NewSLAService(service.SLADependencies{
		TicketRepo: ticketRepo,
		Cache:      reportCache,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	reportService := service.NewReportService(service.ReportDependencies{
		TicketRepo: ticketRepo,
		Cache:      reportCache,
		CacheTTL:   cfg.Report.CacheTTL(),
		Location:   cfg.Report.Location(),
		Logger:     logger,
	})
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		OperatorRepo: operatorRepo,
		Logger:       logger,
	})
	if err := authService.BootstrapAdmin(ctx, cfg.Auth); err != nil {
		logger.Error("failed to bootstrap admin operator", zap.Error(err))
	}
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), operatorRepo)

	var redisPinger handlers.Pinger
	if rdb.ClientHandle() != nil {
		redisPinger = rdb
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisPinger),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, slaService),
		SLA:            handlers.NewSLAHandler(slaService, ticketService, metrics),
		Reports:        handlers.NewReportsHandler(reportService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	var wg sync.WaitGroup
	scanWorker := worker.NewSLAScanWorker(slaService, scanLock, cfg.SLA.ScanInterval(), cfg.SLA.ScanLockTTL(), metrics, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanWorker.Run(ctx)
	}()

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
