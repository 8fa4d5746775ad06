package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/straye-as/measure-api/docs"
	"github.com/straye-as/measure-api/internal/auth"
	"github.com/straye-as/measure-api/internal/config"
	"github.com/straye-as/measure-api/internal/database"
	"github.com/straye-as/measure-api/internal/datawarehouse"
	"github.com/straye-as/measure-api/internal/events"
	"github.com/straye-as/measure-api/internal/http/handler"
	"github.com/straye-as/measure-api/internal/http/middleware"
	"github.com/straye-as/measure-api/internal/http/router"
	"github.com/straye-as/measure-api/internal/jobs"
	"github.com/straye-as/measure-api/internal/logger"
	"github.com/straye-as/measure-api/internal/metrics"
	"github.com/straye-as/measure-api/internal/repository"
	"github.com/straye-as/measure-api/internal/service"
	"github.com/straye-as/measure-api/internal/storage"
	"go.uber.org/zap"
)

// @title Measure API
// @version 1.0
// @description Periodic quantity measurements against contract item catalogs, with a review workflow.

// @contact.name API Support
// @contact.email support@straye.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Basic configuration first, for logging
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if host := os.Getenv("SWAGGER_HOST"); host != "" {
		docs.SwaggerInfo.Host = host
	} else {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Environment variables in development, Key Vault in staging and production
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to auto-migrate: %w", err)
		}
		log.Warn("Schema auto-migrated; use cmd/migrate outside development")
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// The data warehouse is optional; the API runs without invoiced totals
	var dwClient *datawarehouse.Client
	var invoices service.InvoiceSource
	if cfg.DataWarehouse.Enabled {
		dwClient, err = datawarehouse.NewClient(&cfg.DataWarehouse, log)
		if err != nil {
			log.Warn("Data warehouse connection failed, continuing without it", zap.Error(err))
		} else if dwClient != nil {
			invoices = dwClient
			log.Info("Data warehouse connected",
				zap.Int("max_open_conns", cfg.DataWarehouse.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.DataWarehouse.QueryTimeout),
			)
		}
	} else {
		log.Info("Data warehouse not configured, skipping")
	}

	publisher, err := events.NewPublisher(&cfg.Events, log)
	if err != nil {
		log.Warn("Event publisher unavailable, review events will not be published", zap.Error(err))
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	m := metrics.New()

	// Repositories
	projectRepo := repository.NewProjectRepository(db)
	contractRepo := repository.NewContractRepository(db)
	itemRepo := repository.NewMeasurementItemRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	detailRepo := repository.NewMeasurementDetailRepository(db)
	reviewRepo := repository.NewMeasurementReviewRepository(db)

	// Services
	projectService := service.NewProjectService(projectRepo, log)
	contractService := service.NewContractService(contractRepo, projectRepo, detailRepo, invoices, log)
	itemService := service.NewMeasurementItemService(itemRepo, contractRepo, projectRepo, log)
	periodService := service.NewPeriodService(periodRepo, contractRepo, projectRepo, m, log)
	detailService := service.NewMeasurementDetailService(detailRepo, reviewRepo, periodRepo, itemRepo,
		contractRepo, projectRepo, publisher, m, cfg.Workflow, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	auditMiddleware := middleware.NewAuditMiddleware(nil, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		dwClient,
		m,
		authMiddleware,
		rateLimiter,
		auditMiddleware,
		router.Handlers{
			Project:           handler.NewProjectHandler(projectService, log),
			Contract:          handler.NewContractHandler(contractService, itemService, log),
			MeasurementItem:   handler.NewMeasurementItemHandler(itemService, log),
			Period:            handler.NewPeriodHandler(periodService, log),
			MeasurementDetail: handler.NewMeasurementDetailHandler(detailService, log),
			Attachment:        handler.NewAttachmentHandler(fileStorage, cfg.Storage.MaxUploadSizeMB, log),
		},
	)

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		job := jobs.NewPeriodArchiveJob(periodService, log, cfg.Jobs.PeriodArchiveGraceDays, cfg.Jobs.PeriodArchiveTimeoutDuration())
		if err := scheduler.AddJob(jobs.PeriodArchiveJobName, cfg.Jobs.PeriodArchiveCron, job.Run); err != nil {
			log.Error("Failed to register period archive job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started",
				zap.Strings("jobs", scheduler.JobNames()),
				zap.String("cron_expr", cfg.Jobs.PeriodArchiveCron),
				zap.Int("grace_days", cfg.Jobs.PeriodArchiveGraceDays),
			)
		}
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if dwClient != nil {
			if err := dwClient.Close(); err != nil {
				log.Warn("Error closing data warehouse connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
